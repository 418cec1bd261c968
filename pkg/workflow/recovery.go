package workflow

import (
	"context"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// recoverDialogs dismisses known error dialogs and re-runs the search
// until none is on screen. There is no attempt cap: a dialog that never
// goes away stalls here until cancellation.
func (c *cycle) recoverDialogs(ctx context.Context) error {
	l := c.layout
	if len(l.ErrorDialogs) == 0 {
		return nil
	}
	texts := make([]string, len(l.ErrorDialogs))
	for i, d := range l.ErrorDialogs {
		texts[i] = d.Text
	}

	for {
		if err := c.checkpoint(ctx); err != nil {
			return err
		}
		found, ok := c.deps.Nodes.FirstPresent(ctx, texts...)
		if !ok {
			return nil
		}

		var rule DialogRule
		for _, d := range l.ErrorDialogs {
			if d.Text == found {
				rule = d
				break
			}
		}

		c.rec.Log(core.LevelWarning, "检测到'%s'提示，正在处理", rule.Text)
		_ = c.deps.Input.Tap(ctx, rule.Dismiss)
		if err := c.settle(ctx, l.DismissSettle); err != nil {
			return err
		}
		_ = c.deps.Input.Tap(ctx, l.SearchButton)
		if err := c.settle(ctx, l.ResearchSettle); err != nil {
			return err
		}
	}
}

// matchSpecialCase returns the first row, in table order, whose condition
// holds.
func (c *cycle) matchSpecialCase(ctx context.Context) (*SpecialCase, bool) {
	for i := range c.layout.SpecialCases {
		sc := &c.layout.SpecialCases[i]
		if c.present(ctx, sc.When...) {
			return sc, true
		}
	}
	return nil, false
}

// specialCases runs one pass of the special-case table. A nil outcome
// means the cycle goes on to the limit check and the final print.
func (c *cycle) specialCases(ctx context.Context, plate string) (*core.CycleOutcome, error) {
	sc, ok := c.matchSpecialCase(ctx)
	if !ok {
		return nil, nil
	}

	if sc.Message != "" {
		c.rec.Log(core.LevelInfo, "%s", sc.Message)
	}
	c.log("special case %s", sc.Name)

	if sc.CheckLimit && c.limitReached(ctx) {
		out := c.outcome(core.OutcomeLimitReached, plate, core.ErrDailyLimit.Message)
		return &out, nil
	}

	for first := true; first || (sc.Poll && c.present(ctx, sc.When...)); first = false {
		if err := c.checkpoint(ctx); err != nil {
			return nil, err
		}
		if err := c.exec(ctx, sc.Script); err != nil {
			return nil, err
		}
	}

	if sc.Effect != EffectFinish {
		return nil, nil
	}

	if sc.Verify {
		if !c.verify(ctx, c.layout.Confirmation) {
			c.rec.Log(core.LevelError, "%s: 打印预览界面异常", sc.Name)
			out := c.outcome(core.OutcomeAborted, plate, core.ErrStructuralDeviation.Message)
			return &out, nil
		}
		if err := c.confirm(ctx); err != nil {
			return nil, err
		}
	}

	out := c.complete(ctx, plate)
	return &out, nil
}

func (c *cycle) limitReached(ctx context.Context) bool {
	if c.layout.LimitText == "" {
		return false
	}
	if c.deps.Nodes.FindByText(ctx, c.layout.LimitText) == nil {
		return false
	}
	c.rec.Log(core.LevelWarning, "已达到开单上限，停止处理")
	return true
}
