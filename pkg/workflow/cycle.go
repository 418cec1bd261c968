package workflow

import (
	"context"
	"strings"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
)

// cycle is one pass over a single work item.
type cycle struct {
	deps     Deps
	layout   *Layout
	opts     Options
	rec      Recorder
	operator string
	index    int
}

func (c *cycle) log(format string, args ...interface{}) {
	logger.Info("[cycle %d] "+format, append([]interface{}{c.index + 1}, args...)...)
}

func (c *cycle) outcome(kind core.OutcomeKind, plate, reason string) core.CycleOutcome {
	return core.CycleOutcome{Index: c.index, Kind: kind, Plate: plate, Reason: reason}
}

func (c *cycle) cancelled(plate string) core.CycleOutcome {
	return c.outcome(core.OutcomeCancelled, plate, "stop requested")
}

// halt maps a script error to the cycle's outcome. Only a stop request
// reads as cancelled; anything else is a step failure.
func (c *cycle) halt(plate string, err error) core.CycleOutcome {
	if core.IsCategory(err, core.ErrCategoryCancelled) {
		return c.cancelled(plate)
	}
	c.rec.Log(core.LevelError, "第 %d 条记录处理失败: %v", c.index+1, err)
	return c.outcome(core.OutcomeAborted, plate, "step failure: "+err.Error())
}

// run executes the per-cycle script. It never panics on sensor or
// dispatch faults; those read as absence.
func (c *cycle) run(ctx context.Context) core.CycleOutcome {
	l := c.layout

	c.rec.Log(core.LevelInfo, "正在识别违法车辆信息...")
	plate, ok := c.senseItem(ctx)
	if ctx.Err() != nil {
		return c.cancelled("")
	}
	if !ok {
		c.rec.Log(core.LevelWarning, "未检测到违法车辆信息，结束循环")
		return c.outcome(core.OutcomeExhausted, "", "no work item")
	}
	if s, hit := c.sentinel(plate); hit {
		c.rec.Log(core.LevelWarning, "识别结果 '%s' 含有结束标记 '%s'，结束循环", plate, s)
		return c.outcome(core.OutcomeExhausted, "", "sentinel "+s)
	}
	c.rec.Log(core.LevelInfo, "检测到违法车辆: %s", plate)

	if err := c.exec(ctx, l.CopyItem); err != nil {
		return c.halt(plate, err)
	}

	slot := l.Slot(c.index)
	c.log("switch slot %v", slot)
	_ = c.deps.Input.Tap(ctx, slot)
	if err := c.settle(ctx, l.SlotSettle); err != nil {
		return c.halt(plate, err)
	}

	if !c.verify(ctx, l.Destination) {
		c.rec.Log(core.LevelError, "未在%s界面，退出流程", l.Destination.Expect)
		return c.outcome(core.OutcomeAborted, plate, core.ErrStructuralDeviation.Message)
	}
	c.rec.Log(core.LevelInfo, "已进入%s界面", l.Destination.Expect)

	if err := c.exec(ctx, l.Search); err != nil {
		return c.halt(plate, err)
	}
	if err := c.recoverDialogs(ctx); err != nil {
		return c.halt(plate, err)
	}

	if c.deps.Nodes.FindByText(ctx, l.NoDataText) != nil {
		c.rec.Log(core.LevelWarning, "%s，跳过此条", l.NoDataText)
		if err := c.exec(ctx, l.NoDataAck); err != nil {
			return c.halt(plate, err)
		}
		if err := c.cleanup(ctx, ""); err != nil {
			return c.halt(plate, err)
		}
		return c.outcome(core.OutcomeSkippedNoData, plate, l.NoDataText)
	}
	c.rec.Log(core.LevelInfo, "查询到车辆数据，开始处理")

	if err := c.exec(ctx, l.Create); err != nil {
		return c.halt(plate, err)
	}

	out, err := c.specialCases(ctx, plate)
	if err != nil {
		return c.halt(plate, err)
	}
	if out != nil {
		return *out
	}

	if c.limitReached(ctx) {
		return c.outcome(core.OutcomeLimitReached, plate, core.ErrDailyLimit.Message)
	}

	c.rec.Log(core.LevelInfo, "准备打印决定书")
	if err := c.exec(ctx, l.FinalPrint); err != nil {
		return c.halt(plate, err)
	}
	if !c.verify(ctx, l.Confirmation) {
		c.rec.Log(core.LevelError, "打印预览界面异常")
		return c.outcome(core.OutcomeAborted, plate, core.ErrStructuralDeviation.Message)
	}
	c.rec.Log(core.LevelInfo, "进入打印预览界面")

	if err := c.confirm(ctx); err != nil {
		return c.halt(plate, err)
	}
	return c.complete(ctx, plate)
}

// senseItem reads the next work item with bounded retry.
func (c *cycle) senseItem(ctx context.Context) (string, bool) {
	return sensor.ReadWithRetry(ctx, c.opts.Retry, func(ctx context.Context) (string, bool) {
		return c.deps.Reader.ReadRegion(ctx, c.layout.ItemRegion)
	})
}

func (c *cycle) sentinel(text string) (string, bool) {
	for _, s := range c.layout.Sentinels {
		if s != "" && strings.Contains(text, s) {
			return s, true
		}
	}
	return "", false
}

// verify reads the check's region and compares the trimmed text.
func (c *cycle) verify(ctx context.Context, chk Check) bool {
	text, _ := c.deps.Reader.ReadRegion(ctx, chk.Region)
	text = strings.TrimSpace(text)
	c.log("check %v: %q, want %q", chk.Region, text, chk.Expect)
	return text == chk.Expect
}

// confirm runs the Confirm script. Its last action issues the ticket, so
// once it is reached the script finishes regardless of a stop request.
func (c *cycle) confirm(ctx context.Context) error {
	s := c.layout.Confirm
	if len(s) == 0 {
		return nil
	}
	if err := c.exec(ctx, s[:len(s)-1]); err != nil {
		return err
	}
	return c.do(context.WithoutCancel(ctx), s[len(s)-1])
}

// complete runs cleanup without cancellation, since the ticket is already
// confirmed, and records the plate.
func (c *cycle) complete(ctx context.Context, plate string) core.CycleOutcome {
	_ = c.cleanup(context.WithoutCancel(ctx), plate)
	if c.rec.AddResult(plate, c.operator) {
		c.rec.Log(core.LevelSuccess, "已完成处理：%s", plate)
	}
	return c.outcome(core.OutcomeCompleted, plate, "")
}

// cleanup deletes the handled item from the source app. Its faults are
// logged and never fail the cycle.
func (c *cycle) cleanup(ctx context.Context, plate string) error {
	if plate != "" {
		c.rec.Log(core.LevelInfo, "清理微信消息：%s", plate)
	} else {
		c.rec.Log(core.LevelInfo, "清理微信消息")
	}
	return c.exec(ctx, c.layout.Cleanup)
}
