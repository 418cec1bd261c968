package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yuwei/yunduanban-runner/pkg/config"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/sink"
)

// Scheduler starts runs on a cron schedule.
type Scheduler struct {
	cron  *cron.Cron
	entry cron.EntryID
	spec  string
}

// parseCronExpr tries 6-field (with seconds) then 5-field parsing.
func parseCronExpr(expr string) (cron.Schedule, error) {
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if sched, err := parser6.Parse(expr); err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser5.Parse(expr)
}

// NewScheduler registers job under spec. Call Start to begin firing.
func NewScheduler(spec string, job func()) (*Scheduler, error) {
	sched, err := parseCronExpr(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c := cron.New()
	id := c.Schedule(sched, cron.FuncJob(job))
	return &Scheduler{cron: c, entry: id, spec: spec}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler: registered %q", s.spec)
}

// Stop stops firing. The returned context ends when a running job returns.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns when the job fires next. It is false before Start.
func (s *Scheduler) Next() (time.Time, bool) {
	next := s.cron.Entry(s.entry).Next
	return next, !next.IsZero()
}

// ScheduledStart returns a job that starts a run for the selected operator.
// Failures, such as a run already in progress, go to the log sink.
func ScheduledStart(engine Controller, s *sink.Sink, operators *config.Operators) func() {
	return func() {
		operator := ""
		if operators != nil {
			operator = operators.Selected()
		}
		s.Info("定时任务触发")
		if _, err := engine.Start(operator); err != nil {
			s.Warning("定时启动失败: %v", err)
		}
	}
}
