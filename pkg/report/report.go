// Package report writes a JSON report per run, with a screenshot and the
// page source attached to cycles that ended badly.
//
// Layout:
//
//	<root>/runs/<runID>/report.json
//	<root>/runs/<runID>/cycle-003-screenshot.png
//	<root>/runs/<runID>/cycle-003-hierarchy.xml
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// Version of the report format.
const Version = "1.0.0"

// ReportFile is the report's name inside its run directory.
const ReportFile = "report.json"

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Collector captures artifacts from the device. core.Driver satisfies it.
type Collector interface {
	Screenshot(ctx context.Context) ([]byte, error)
	Source(ctx context.Context) (string, error)
}

// CycleEntry is one cycle in the report.
type CycleEntry struct {
	core.CycleOutcome
	EndTime     time.Time         `json:"endTime"`
	Attachments []core.Attachment `json:"attachments,omitempty"`
}

// Report is the on-disk document.
type Report struct {
	Version   string           `json:"version"`
	RunID     string           `json:"runId"`
	Operator  string           `json:"operator"`
	Status    Status           `json:"status"`
	StartTime time.Time        `json:"startTime"`
	EndTime   *time.Time       `json:"endTime,omitempty"`
	Cycles    []CycleEntry     `json:"cycles"`
	Summary   *core.RunSummary `json:"summary,omitempty"`
}

// Writer keeps the current run's report on disk. The report is rewritten
// after every cycle so a crashed run still leaves a readable file.
type Writer struct {
	root      string
	collector Collector
	cfg       core.ArtifactConfig

	mu     sync.Mutex
	dir    string
	report *Report
}

// NewWriter creates a writer under root. A nil collector disables
// artifact capture.
func NewWriter(root string, collector Collector, cfg core.ArtifactConfig) *Writer {
	return &Writer{root: root, collector: collector, cfg: cfg}
}

// RunDir returns the directory of a run.
func RunDir(root, runID string) string {
	return filepath.Join(root, "runs", runID)
}

// RunStarted opens a new report.
func (w *Writer) RunStarted(summary *core.RunSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.dir = RunDir(w.root, summary.RunID)
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		logger.Warn("report: create %s: %v", w.dir, err)
	}
	w.report = &Report{
		Version:   Version,
		RunID:     summary.RunID,
		Operator:  summary.Operator,
		Status:    StatusRunning,
		StartTime: summary.StartedAt,
		Cycles:    []CycleEntry{},
	}
	w.flushLocked()
}

// CycleDone appends a cycle, capturing artifacts when the policy asks.
func (w *Writer) CycleDone(ctx context.Context, o core.CycleOutcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.report == nil {
		return
	}

	entry := CycleEntry{CycleOutcome: o, EndTime: time.Now()}
	if w.collector != nil && w.cfg.ShouldCapture(o.Kind) {
		entry.Attachments = w.capture(ctx, o.Index)
	}
	w.report.Cycles = append(w.report.Cycles, entry)
	w.flushLocked()
}

// RunDone closes the report with the final summary.
func (w *Writer) RunDone(summary *core.RunSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.report == nil {
		return
	}

	now := time.Now()
	w.report.EndTime = &now
	w.report.Status = statusOf(summary.Final.Kind)
	w.report.Summary = summary
	w.flushLocked()
	w.report = nil
}

func (w *Writer) capture(ctx context.Context, index int) []core.Attachment {
	var out []core.Attachment

	if w.cfg.Screenshot {
		data, err := w.collector.Screenshot(ctx)
		if err != nil {
			logger.Warn("report: screenshot for cycle %d: %v", index+1, err)
		} else if name, err := w.save(fmt.Sprintf("cycle-%03d-screenshot.png", index+1), data); err == nil {
			out = append(out, core.NewScreenshotAttachment(name, data))
		}
	}

	if w.cfg.UIHierarchy {
		src, err := w.collector.Source(ctx)
		if err != nil {
			logger.Warn("report: hierarchy for cycle %d: %v", index+1, err)
		} else if name, err := w.save(fmt.Sprintf("cycle-%03d-hierarchy.xml", index+1), []byte(src)); err == nil {
			out = append(out, core.NewHierarchyAttachment(name, []byte(src)))
		}
	}
	return out
}

// save writes an asset and returns its path relative to the run directory.
func (w *Writer) save(name string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		logger.Warn("report: save %s: %v", name, err)
		return "", err
	}
	return name, nil
}

func (w *Writer) flushLocked() {
	if err := atomicWriteJSON(filepath.Join(w.dir, ReportFile), w.report); err != nil {
		logger.Warn("report: write: %v", err)
	}
}

func statusOf(kind core.OutcomeKind) Status {
	switch kind {
	case core.OutcomeAborted:
		return StatusFailed
	case core.OutcomeCancelled:
		return StatusCancelled
	default:
		return StatusPassed
	}
}

// Load reads a run's report.
func Load(root, runID string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(RunDir(root, runID), ReportFile))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
