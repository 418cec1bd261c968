package core

import (
	"fmt"
	"time"
)

// CycleOutcome is produced once per loop iteration and never mutated.
type CycleOutcome struct {
	Index  int         `json:"index"`
	Kind   OutcomeKind `json:"kind"`
	Plate  string      `json:"plate,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

func (o CycleOutcome) String() string {
	switch {
	case o.Plate != "" && o.Reason != "":
		return fmt.Sprintf("cycle %d %s %s: %s", o.Index+1, o.Kind, o.Plate, o.Reason)
	case o.Plate != "":
		return fmt.Sprintf("cycle %d %s %s", o.Index+1, o.Kind, o.Plate)
	case o.Reason != "":
		return fmt.Sprintf("cycle %d %s: %s", o.Index+1, o.Kind, o.Reason)
	}
	return fmt.Sprintf("cycle %d %s", o.Index+1, o.Kind)
}

// EngineState is the snapshot the host polls.
type EngineState struct {
	Phase           Phase     `json:"phase"`
	Running         bool      `json:"running"`
	CancelRequested bool      `json:"cancelRequested"`
	Operator        string    `json:"operator,omitempty"`
	RunID           string    `json:"runId,omitempty"`
	Cycle           int       `json:"cycle"`
	StartedAt       time.Time `json:"startedAt,omitempty"`
}

// RunSummary totals the outcomes of one run.
type RunSummary struct {
	RunID     string         `json:"runId"`
	Operator  string         `json:"operator"`
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Completed int            `json:"completed"`
	Skipped   int            `json:"skipped"`
	Cycles    int            `json:"cycles"`
	Final     CycleOutcome   `json:"final"`
	Outcomes  []CycleOutcome `json:"outcomes,omitempty"`
}

// Add records an outcome in the summary.
func (s *RunSummary) Add(o CycleOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	s.Cycles++
	switch o.Kind {
	case OutcomeCompleted:
		s.Completed++
	case OutcomeSkippedNoData:
		s.Skipped++
	}
	s.Final = o
}
