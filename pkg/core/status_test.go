package core

import (
	"encoding/json"
	"testing"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseIdle, "idle"},
		{PhaseRunning, "running"},
		{PhaseStopping, "stopping"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.expected {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.expected)
		}
	}
}

func TestOutcomeKind_EndsRun(t *testing.T) {
	continuing := []OutcomeKind{OutcomeCompleted, OutcomeSkippedNoData}
	terminal := []OutcomeKind{OutcomeAborted, OutcomeLimitReached, OutcomeCancelled, OutcomeExhausted}

	for _, k := range continuing {
		if k.EndsRun() {
			t.Errorf("OutcomeKind(%s).EndsRun() = true, want false", k)
		}
	}
	for _, k := range terminal {
		if !k.EndsRun() {
			t.Errorf("OutcomeKind(%s).EndsRun() = false, want true", k)
		}
	}
}

func TestLogLevel_RoundTrip(t *testing.T) {
	for _, l := range []LogLevel{LevelInfo, LevelWarning, LevelError, LevelSuccess} {
		data, err := json.Marshal(l)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", l, err)
		}
		var got LogLevel
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != l {
			t.Errorf("round trip %s = %s", l, got)
		}
	}
}

func TestPhase_JSONRoundTrip(t *testing.T) {
	for _, p := range []Phase{PhaseIdle, PhaseRunning, PhaseStopping} {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", p, err)
		}
		var got Phase
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != p {
			t.Errorf("round trip %s = %s", p, got)
		}
	}

	var p Phase
	if err := json.Unmarshal([]byte(`"paused"`), &p); err == nil {
		t.Error("expected error for unknown phase")
	}
}

func TestOutcomeKind_JSONRoundTrip(t *testing.T) {
	all := []OutcomeKind{OutcomeCompleted, OutcomeSkippedNoData, OutcomeAborted, OutcomeLimitReached, OutcomeCancelled, OutcomeExhausted}
	for _, k := range all {
		data, err := json.Marshal(k)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", k, err)
		}
		var got OutcomeKind
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if got != k {
			t.Errorf("round trip %s = %s", k, got)
		}
	}

	var k OutcomeKind
	if err := json.Unmarshal([]byte(`"unknown"`), &k); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestEngineState_DecodesWireForm(t *testing.T) {
	in := EngineState{Phase: PhaseStopping, Running: true, CancelRequested: true, Operator: "张三", Cycle: 3}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out EngineState
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if out.Phase != PhaseStopping || out.Cycle != 3 || out.Operator != "张三" {
		t.Errorf("decoded %+v", out)
	}

	var o CycleOutcome
	if err := json.Unmarshal([]byte(`{"index":1,"kind":"limit_reached","plate":"粤B1"}`), &o); err != nil {
		t.Fatal(err)
	}
	if o.Kind != OutcomeLimitReached || o.Plate != "粤B1" {
		t.Errorf("decoded %+v", o)
	}
}

func TestParseLogLevel_Unknown(t *testing.T) {
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	if l, err := ParseLogLevel("warn"); err != nil || l != LevelWarning {
		t.Errorf("ParseLogLevel(warn) = %s, %v", l, err)
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryTransient, "transient"},
		{ErrCategoryStructural, "structural"},
		{ErrCategoryAbsence, "absence"},
		{ErrCategoryResource, "resource"},
		{ErrCategoryLimit, "limit"},
		{ErrCategoryCancelled, "cancelled"},
		{ErrCategoryConnection, "connection"},
		{ErrCategoryConfig, "config"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}
