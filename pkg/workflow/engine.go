// Package workflow is the control loop that drives the ticketing app:
// a fixed step table executed once per work item, with declarative
// recovery tables for error dialogs and special cases.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
)

// TextReader reads OCR text from a reference-resolution region.
// Implemented by sensor.TextReader.
type TextReader interface {
	ReadRegion(ctx context.Context, region coords.Region) (string, bool)
}

// NodeFinder queries the accessibility tree. Implemented by
// sensor.NodeQuery.
type NodeFinder interface {
	FindByText(ctx context.Context, substr string) *hierarchy.Node
	FindByID(ctx context.Context, id string) *hierarchy.Node
	FirstPresent(ctx context.Context, substrs ...string) (string, bool)
}

// Actuator sends input. Implemented by input.Dispatcher.
type Actuator interface {
	Tap(ctx context.Context, p coords.Point) error
	LongPress(ctx context.Context, p coords.Point, hold time.Duration) error
	TapNode(ctx context.Context, n *hierarchy.Node) error
	Back(ctx context.Context) error
	Recents(ctx context.Context) error
	PasteText(ctx context.Context, text string) error
	LaunchApp(ctx context.Context, pkg string) error
}

// Recorder is the result and log sink. Implemented by sink.Sink.
type Recorder interface {
	AddResult(plate, operator string) bool
	Log(level core.LogLevel, format string, args ...interface{}) core.LogEntry
}

// Display reports the device's screen size. Implemented by core.Driver.
type Display interface {
	PlatformInfo(ctx context.Context) (*core.PlatformInfo, error)
}

// Reporter persists a per-run report. Implemented by report.Writer.
type Reporter interface {
	RunStarted(summary *core.RunSummary)
	CycleDone(ctx context.Context, o core.CycleOutcome)
	RunDone(summary *core.RunSummary)
}

// Deps are the collaborators the engine drives. Reporter is optional.
type Deps struct {
	Reader   TextReader
	Nodes    NodeFinder
	Input    Actuator
	Recorder Recorder
	Scaler   *coords.Scaler
	Display  Display
	Reporter Reporter
}

// Sleeper waits d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Defaults for Options.
const (
	DefaultMaxCycles       = 150
	DefaultSourcePackage   = "com.tencent.weworklocal"
	DefaultCreateControlID = "btnKd"
)

// Options tune a run.
type Options struct {
	MaxCycles       int
	SourcePackage   string
	CreateControlID string
	Retry           sensor.RetryPolicy
	Sleep           Sleeper
}

func (o Options) withDefaults() Options {
	if o.MaxCycles <= 0 {
		o.MaxCycles = DefaultMaxCycles
	}
	if o.SourcePackage == "" {
		o.SourcePackage = DefaultSourcePackage
	}
	if o.CreateControlID == "" {
		o.CreateControlID = DefaultCreateControlID
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = sensor.DefaultAttempts
		if o.Retry.Delay == 0 {
			o.Retry.Delay = sensor.DefaultDelay
		}
	}
	if o.Retry.Wait == nil {
		o.Retry.Wait = o.Sleep
	}
	return o
}

// Engine owns the run state. The control loop is its only writer; any
// goroutine may read State or call Stop.
type Engine struct {
	deps   Deps
	layout *Layout
	opts   Options

	mu     sync.Mutex
	state  core.EngineState
	cancel context.CancelFunc
	done   chan struct{}
	last   *core.RunSummary

	subMu  sync.Mutex
	subs   map[int]chan core.EngineState
	nextID int
}

// New creates an idle engine. A nil layout uses DefaultLayout.
func New(deps Deps, layout *Layout, opts Options) *Engine {
	if layout == nil {
		layout = DefaultLayout()
	}
	if deps.Scaler == nil {
		deps.Scaler = coords.NewScaler()
	}
	return &Engine{
		deps:   deps,
		layout: layout,
		opts:   opts.withDefaults(),
		state:  core.EngineState{Phase: core.PhaseIdle},
		subs:   make(map[int]chan core.EngineState),
	}
}

// Layout returns the step table in use.
func (e *Engine) Layout() *Layout { return e.layout }

// State returns a snapshot of the engine state.
func (e *Engine) State() core.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastSummary returns the summary of the most recent finished run.
func (e *Engine) LastSummary() *core.RunSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Subscribe streams state transitions. Delivery is best effort; readers
// that fall behind miss transitions and should poll State.
func (e *Engine) Subscribe() (<-chan core.EngineState, func()) {
	ch := make(chan core.EngineState, 8)

	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, id)
			e.subMu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) broadcast(s core.EngineState) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// begin moves Idle to Running.
func (e *Engine) begin(ctx context.Context, operator string) (context.Context, *core.RunSummary, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, nil, core.ErrMissingOperator
	}

	e.mu.Lock()
	if e.state.Running {
		e.mu.Unlock()
		return nil, nil, core.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	summary := &core.RunSummary{RunID: uuid.NewString(), Operator: operator, StartedAt: now}
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = core.EngineState{
		Phase:     core.PhaseRunning,
		Running:   true,
		Operator:  operator,
		RunID:     summary.RunID,
		StartedAt: now,
	}
	state := e.state
	e.mu.Unlock()

	e.broadcast(state)
	return runCtx, summary, nil
}

// end moves back to Idle.
func (e *Engine) end(summary *core.RunSummary) {
	summary.Duration = time.Since(summary.StartedAt)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.last = summary
	e.state = core.EngineState{Phase: core.PhaseIdle, Operator: e.state.Operator}
	state := e.state
	done := e.done
	e.mu.Unlock()

	if e.deps.Reporter != nil {
		e.deps.Reporter.RunDone(summary)
	}
	close(done)
	e.broadcast(state)
}

// Run executes a whole run on the calling goroutine.
func (e *Engine) Run(ctx context.Context, operator string) (*core.RunSummary, error) {
	runCtx, summary, err := e.begin(ctx, operator)
	if err != nil {
		return nil, err
	}
	defer e.end(summary)

	e.loop(runCtx, summary)
	return summary, nil
}

// Start launches a run in the background and returns its ID.
func (e *Engine) Start(operator string) (string, error) {
	runCtx, summary, err := e.begin(context.Background(), operator)
	if err != nil {
		return "", err
	}

	go func() {
		defer e.end(summary)
		e.loop(runCtx, summary)
	}()
	return summary.RunID, nil
}

// Stop requests cancellation. It returns false if nothing is running.
// The loop notices at its next checkpoint.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	if !e.state.Running {
		e.mu.Unlock()
		return false
	}
	already := e.state.CancelRequested
	e.state.Phase = core.PhaseStopping
	e.state.CancelRequested = true
	if e.cancel != nil {
		e.cancel()
	}
	state := e.state
	e.mu.Unlock()

	if !already {
		e.deps.Recorder.Log(core.LevelWarning, "正在停止自动化任务...")
		e.broadcast(state)
	}
	return true
}

// StopOnKey stops a running engine when the volume-up key is pressed.
func (e *Engine) StopOnKey(key core.Key) bool {
	if key != core.KeyVolumeUp || !e.State().Running {
		return false
	}
	e.deps.Recorder.Log(core.LevelWarning, "用户按音量上键终止任务")
	return e.Stop()
}

// Wait blocks until the current run, if any, finishes and returns the
// last summary.
func (e *Engine) Wait(ctx context.Context) (*core.RunSummary, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.LastSummary(), nil
}

func (e *Engine) setCycle(i int) {
	e.mu.Lock()
	e.state.Cycle = i + 1
	e.mu.Unlock()
}

// prepare fixes the scale factor and opens the source app.
func (e *Engine) prepare(ctx context.Context) error {
	rec := e.deps.Recorder

	if !e.deps.Scaler.Initialized() {
		if e.deps.Display == nil {
			return core.ErrNotInitialized
		}
		info, err := e.deps.Display.PlatformInfo(ctx)
		if err != nil {
			return core.ErrNotInitialized.WithCause(err)
		}
		if err := e.deps.Scaler.Init(info.ScreenWidth, info.ScreenHeight); err != nil {
			return core.ErrNotInitialized.WithCause(err)
		}
	}
	rec.Log(core.LevelInfo, "屏幕: %s", e.deps.Scaler.Info())

	if err := e.opts.Sleep(ctx, e.layout.InitialSettle); err != nil {
		return core.ErrCancelled.WithCause(err)
	}
	rec.Log(core.LevelInfo, "正在打开政务微信... (包名: %s)", e.opts.SourcePackage)
	if err := e.deps.Input.LaunchApp(ctx, e.opts.SourcePackage); err != nil {
		rec.Log(core.LevelWarning, "打开 %s 失败: %v", e.opts.SourcePackage, err)
	}
	if err := e.opts.Sleep(ctx, e.layout.LaunchSettle); err != nil {
		return core.ErrCancelled.WithCause(err)
	}
	return nil
}

func (e *Engine) loop(ctx context.Context, summary *core.RunSummary) {
	rec := e.deps.Recorder
	rec.Log(core.LevelInfo, "开始执行自动化任务，民警: %s", summary.Operator)
	logger.Info("run %s started for %s", summary.RunID, summary.Operator)
	if e.deps.Reporter != nil {
		e.deps.Reporter.RunStarted(summary)
	}

	if err := e.prepare(ctx); err != nil {
		kind := core.OutcomeAborted
		if core.IsCategory(err, core.ErrCategoryCancelled) {
			kind = core.OutcomeCancelled
			rec.Log(core.LevelWarning, "任务已被用户终止")
		} else {
			rec.Log(core.LevelError, "自动化任务执行失败: %v", err)
		}
		summary.Final = core.CycleOutcome{Kind: kind, Reason: err.Error()}
		return
	}

	rec.Log(core.LevelInfo, "开始主循环，最多处理%d条记录", e.opts.MaxCycles)

	for i := 0; i < e.opts.MaxCycles; i++ {
		if ctx.Err() != nil {
			e.cancelled(summary, i)
			e.finished(summary)
			return
		}
		if err := e.opts.Sleep(ctx, e.layout.PreCycle); err != nil || ctx.Err() != nil {
			e.cancelled(summary, i)
			e.finished(summary)
			return
		}

		e.setCycle(i)
		rec.Log(core.LevelInfo, "处理第 %d 条记录...", i+1)

		out := e.runCycle(ctx, summary.Operator, i)
		summary.Add(out)
		logger.Info("%s", out)
		if e.deps.Reporter != nil {
			// Capture must survive a stop request.
			e.deps.Reporter.CycleDone(context.WithoutCancel(ctx), out)
		}

		if out.Kind == core.OutcomeCancelled {
			rec.Log(core.LevelWarning, "任务已被用户终止")
		}
		if out.Kind.EndsRun() {
			e.finished(summary)
			return
		}
	}

	rec.Log(core.LevelInfo, "已处理到最大条数 %d", e.opts.MaxCycles)
	e.finished(summary)
}

func (e *Engine) cancelled(summary *core.RunSummary, i int) {
	e.deps.Recorder.Log(core.LevelWarning, "任务已被用户终止")
	summary.Final = core.CycleOutcome{Index: i, Kind: core.OutcomeCancelled, Reason: "stop requested"}
}

func (e *Engine) finished(summary *core.RunSummary) {
	rec := e.deps.Recorder
	switch summary.Final.Kind {
	case core.OutcomeAborted:
		rec.Log(core.LevelError, "自动化任务异常结束: %s", summary.Final.Reason)
	case core.OutcomeCancelled:
		rec.Log(core.LevelWarning, "自动化任务已停止")
	default:
		rec.Log(core.LevelSuccess, "自动化任务正常结束，完成 %d 条，跳过 %d 条", summary.Completed, summary.Skipped)
	}
}

// runCycle is the single top-level boundary for step faults.
func (e *Engine) runCycle(ctx context.Context, operator string, index int) (out core.CycleOutcome) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("cycle %d panicked: %v", index+1, p)
			e.deps.Recorder.Log(core.LevelError, "第 %d 条记录处理失败: %v", index+1, p)
			out = core.CycleOutcome{Index: index, Kind: core.OutcomeAborted, Reason: fmt.Sprintf("step failure: %v", p)}
		}
	}()

	c := &cycle{
		deps:     e.deps,
		layout:   e.layout,
		opts:     e.opts,
		rec:      e.deps.Recorder,
		operator: operator,
		index:    index,
	}
	return c.run(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
