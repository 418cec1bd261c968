package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is the engine's lifecycle state
type Phase int

const (
	PhaseIdle     Phase = iota // No run in progress
	PhaseRunning               // Control loop executing cycles
	PhaseStopping              // Cancellation requested, waiting for the next checkpoint
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the phase by name
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a phase name
func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for v := PhaseIdle; v <= PhaseStopping; v++ {
		if v.String() == s {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", s)
}

// OutcomeKind classifies how a single cycle ended
type OutcomeKind int

const (
	OutcomeCompleted     OutcomeKind = iota // Ticket confirmed, plate recorded
	OutcomeSkippedNoData                    // Search found nothing, item cleaned up
	OutcomeAborted                          // Structural deviation or fatal step error
	OutcomeLimitReached                     // Daily limit marker seen
	OutcomeCancelled                        // Stop requested before the cycle finished
	OutcomeExhausted                        // No more work items
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkippedNoData:
		return "skipped_no_data"
	case OutcomeAborted:
		return "aborted"
	case OutcomeLimitReached:
		return "limit_reached"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind by name
func (k OutcomeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name
func (k *OutcomeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for v := OutcomeCompleted; v <= OutcomeExhausted; v++ {
		if v.String() == s {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", s)
}

// EndsRun returns true if no further cycle may follow this outcome
func (k OutcomeKind) EndsRun() bool {
	switch k {
	case OutcomeCompleted, OutcomeSkippedNoData:
		return false
	default:
		return true
	}
}

// LogLevel is the severity of a user-visible log entry
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel is the inverse of LogLevel.String
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return LevelInfo, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "SUCCESS":
		return LevelSuccess, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// MarshalJSON encodes the level by name
func (l LogLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name
func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ErrorCategory classifies the type of error for recovery decisions
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryTransient                       // Known error dialog, recovered in place
	ErrCategoryStructural                      // Expected screen identity absent, aborts the run
	ErrCategoryAbsence                         // Nothing read or found, treated as false
	ErrCategoryResource                        // Capture or recognition failure, converted to absence
	ErrCategoryLimit                           // Daily limit reached, ends the run successfully
	ErrCategoryCancelled                       // Operator stop
	ErrCategoryConnection                      // Device/server connection lost
	ErrCategoryConfig                          // Invalid configuration, missing required field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryTransient:
		return "transient"
	case ErrCategoryStructural:
		return "structural"
	case ErrCategoryAbsence:
		return "absence"
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryLimit:
		return "limit"
	case ErrCategoryCancelled:
		return "cancelled"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
