package core

import "testing"

func TestRunSummary_Add(t *testing.T) {
	var s RunSummary
	s.Add(CycleOutcome{Index: 0, Kind: OutcomeCompleted, Plate: "粤A12345"})
	s.Add(CycleOutcome{Index: 1, Kind: OutcomeSkippedNoData, Plate: "粤B00001"})
	s.Add(CycleOutcome{Index: 2, Kind: OutcomeLimitReached})

	if s.Cycles != 3 || s.Completed != 1 || s.Skipped != 1 {
		t.Errorf("unexpected totals %+v", s)
	}
	if s.Final.Kind != OutcomeLimitReached {
		t.Errorf("Final = %s, want limit_reached", s.Final.Kind)
	}
}

func TestCycleOutcome_String(t *testing.T) {
	o := CycleOutcome{Index: 0, Kind: OutcomeAborted, Reason: "header mismatch"}
	if got := o.String(); got != "cycle 1 aborted: header mismatch" {
		t.Errorf("String() = %q", got)
	}
}
