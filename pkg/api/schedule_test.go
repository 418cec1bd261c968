package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/sink"
)

func TestNewScheduler_Specs(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 30 8 * * 1-5", false},
		{"30 8 * * *", false},
		{"@daily", false},
		{"not a schedule", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := NewScheduler(tt.spec, func() {})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_NextAfterStart(t *testing.T) {
	sch, err := NewScheduler("30 8 * * *", func() {})
	require.NoError(t, err)

	_, ok := sch.Next()
	assert.False(t, ok)

	sch.Start()
	defer sch.Stop()
	next, ok := sch.Next()
	require.True(t, ok)
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestScheduledStart(t *testing.T) {
	eng := &fakeEngine{}
	s := sink.New()

	job := ScheduledStart(eng, s, nil)
	job()
	assert.Empty(t, eng.started)
	logs := s.Logs()
	require.NotEmpty(t, logs)
	assert.Equal(t, core.LevelWarning, logs[len(logs)-1].Level)

	srv, eng2, s2 := newTestServer(t)
	ScheduledStart(eng2, s2, srv.operators)()
	assert.Equal(t, []string{"张三"}, eng2.started)
}
