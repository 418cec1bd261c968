package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/driver/mock"
)

func summary(runID string) *core.RunSummary {
	return &core.RunSummary{RunID: runID, Operator: "张三", StartedAt: time.Now()}
}

func TestWriter_CompletedRun(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, mock.New(mock.Config{}), core.DefaultArtifactConfig())

	s := summary("run-1")
	w.RunStarted(s)

	r, err := Load(root, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Empty(t, r.Cycles)

	for i, o := range []core.CycleOutcome{
		{Index: 0, Kind: core.OutcomeCompleted, Plate: "粤B12345"},
		{Index: 1, Kind: core.OutcomeExhausted},
	} {
		s.Add(o)
		w.CycleDone(context.Background(), o)
		r, err = Load(root, "run-1")
		require.NoError(t, err)
		assert.Len(t, r.Cycles, i+1)
	}
	w.RunDone(s)

	r, err = Load(root, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Version, r.Version)
	assert.Equal(t, StatusPassed, r.Status)
	assert.Equal(t, "张三", r.Operator)
	require.NotNil(t, r.EndTime)
	require.NotNil(t, r.Summary)
	assert.Equal(t, 1, r.Summary.Completed)
	assert.Equal(t, "粤B12345", r.Cycles[0].Plate)
	for _, c := range r.Cycles {
		assert.Empty(t, c.Attachments)
	}
}

func TestWriter_CapturesOnAbort(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, mock.New(mock.Config{}), core.DefaultArtifactConfig())

	s := summary("run-2")
	w.RunStarted(s)
	o := core.CycleOutcome{Index: 2, Kind: core.OutcomeAborted, Reason: "wrong destination"}
	s.Add(o)
	w.CycleDone(context.Background(), o)
	w.RunDone(s)

	r, err := Load(root, "run-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	require.Len(t, r.Cycles, 1)
	require.Len(t, r.Cycles[0].Attachments, 2)

	dir := RunDir(root, "run-2")
	shot := r.Cycles[0].Attachments[0]
	assert.Equal(t, core.AttachmentScreenshot, shot.Name)
	assert.Equal(t, "cycle-003-screenshot.png", shot.Path)
	assert.FileExists(t, filepath.Join(dir, shot.Path))

	xml := r.Cycles[0].Attachments[1]
	assert.Equal(t, core.ContentTypeXML, xml.ContentType)
	data, err := os.ReadFile(filepath.Join(dir, xml.Path))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<hierarchy")
}

func TestWriter_CancelledSkipsCapture(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, mock.New(mock.Config{}), core.DefaultArtifactConfig())

	s := summary("run-3")
	w.RunStarted(s)
	o := core.CycleOutcome{Index: 0, Kind: core.OutcomeCancelled}
	s.Add(o)
	w.CycleDone(context.Background(), o)
	w.RunDone(s)

	r, err := Load(root, "run-3")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Empty(t, r.Cycles[0].Attachments)
}

type failingCollector struct{}

func (failingCollector) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, errors.New("device gone")
}

func (failingCollector) Source(ctx context.Context) (string, error) {
	return "", errors.New("device gone")
}

func TestWriter_CaptureErrorsAreNotFatal(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, failingCollector{}, core.DefaultArtifactConfig())

	s := summary("run-4")
	w.RunStarted(s)
	w.CycleDone(context.Background(), core.CycleOutcome{Kind: core.OutcomeAborted})
	w.RunDone(s)

	r, err := Load(root, "run-4")
	require.NoError(t, err)
	require.Len(t, r.Cycles, 1)
	assert.Empty(t, r.Cycles[0].Attachments)
}

func TestWriter_IgnoresCyclesOutsideRun(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, nil, core.DefaultArtifactConfig())

	w.CycleDone(context.Background(), core.CycleOutcome{Kind: core.OutcomeCompleted})
	w.RunDone(summary("none"))

	_, err := os.Stat(filepath.Join(root, "runs"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	assert.Error(t, err)
}
