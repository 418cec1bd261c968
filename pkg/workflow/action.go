package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// Verb names what an Action does.
type Verb string

const (
	VerbTap           Verb = "tap"
	VerbLongPress     Verb = "longPress"
	VerbTapText       Verb = "tapText"
	VerbTapID         Verb = "tapID"
	VerbTapCreate     Verb = "tapCreate" // tap the configured create-ticket control
	VerbPasteOperator Verb = "pasteOperator"
	VerbBack          Verb = "back"
	VerbRecents       Verb = "recents"
	VerbLaunchSource  Verb = "launchSource"
	VerbWait          Verb = "wait"
	VerbIf            Verb = "if"    // run Steps once if any When text is present
	VerbWhile         Verb = "while" // run Steps while any When text is present
)

// Action is one row of a script. Settle is waited after the action and is
// a cancellation checkpoint.
type Action struct {
	Do     Verb          `yaml:"do"`
	At     coords.Point  `yaml:"at,omitempty"`
	Hold   time.Duration `yaml:"hold,omitempty"`
	Text   string        `yaml:"text,omitempty"`
	When   []string      `yaml:"when,omitempty"`
	Steps  Script        `yaml:"steps,omitempty"`
	Settle time.Duration `yaml:"settle,omitempty"`
}

func (a Action) String() string {
	switch a.Do {
	case VerbTap:
		return "tap " + a.At.String()
	case VerbLongPress:
		return fmt.Sprintf("longPress %v %v", a.At, a.Hold)
	case VerbTapText, VerbTapID:
		return fmt.Sprintf("%s %q", a.Do, a.Text)
	case VerbIf, VerbWhile:
		return fmt.Sprintf("%s %q (%d steps)", a.Do, a.When, len(a.Steps))
	}
	return string(a.Do)
}

// Script is an ordered list of actions.
type Script []Action

// Validate checks every action has what its verb needs.
func (s Script) Validate() error {
	for i, a := range s {
		switch a.Do {
		case VerbTap, VerbBack, VerbRecents, VerbLaunchSource, VerbWait, VerbTapCreate, VerbPasteOperator:
		case VerbLongPress:
			if a.Hold <= 0 {
				return fmt.Errorf("step %d: longPress needs hold", i+1)
			}
		case VerbTapText, VerbTapID:
			if a.Text == "" {
				return fmt.Errorf("step %d: %s needs text", i+1, a.Do)
			}
		case VerbIf, VerbWhile:
			if len(a.When) == 0 || len(a.Steps) == 0 {
				return fmt.Errorf("step %d: %s needs when and steps", i+1, a.Do)
			}
			if err := a.Steps.Validate(); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
		default:
			return fmt.Errorf("step %d: unknown verb %q", i+1, a.Do)
		}
	}
	return nil
}

// exec runs a script. Dispatch failures are already logged by the
// dispatcher and do not stop the script; the next sensor check decides.
// Only cancellation returns an error.
func (c *cycle) exec(ctx context.Context, s Script) error {
	for _, a := range s {
		if err := c.do(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (c *cycle) do(ctx context.Context, a Action) error {
	in := c.deps.Input

	switch a.Do {
	case VerbTap:
		_ = in.Tap(ctx, a.At)
	case VerbLongPress:
		_ = in.LongPress(ctx, a.At, a.Hold)
	case VerbTapText:
		if n := c.deps.Nodes.FindByText(ctx, a.Text); n != nil {
			if target := n.ClickableAncestor(); target != nil {
				n = target
			}
			_ = in.TapNode(ctx, n)
		} else {
			logger.Debug("tapText %q: not on screen", a.Text)
		}
	case VerbTapID, VerbTapCreate:
		id := a.Text
		if a.Do == VerbTapCreate {
			id = c.opts.CreateControlID
		}
		if n := c.deps.Nodes.FindByID(ctx, id); n != nil {
			if target := n.ClickableAncestor(); target != nil {
				n = target
			}
			_ = in.TapNode(ctx, n)
		} else {
			c.rec.Log(core.LevelWarning, "未找到控件 %s", id)
		}
	case VerbPasteOperator:
		_ = in.PasteText(ctx, c.operator)
	case VerbBack:
		_ = in.Back(ctx)
	case VerbRecents:
		_ = in.Recents(ctx)
	case VerbLaunchSource:
		_ = in.LaunchApp(ctx, c.opts.SourcePackage)
	case VerbWait:
	case VerbIf:
		if c.present(ctx, a.When...) {
			if err := c.exec(ctx, a.Steps); err != nil {
				return err
			}
		}
	case VerbWhile:
		for c.present(ctx, a.When...) {
			if err := c.checkpoint(ctx); err != nil {
				return err
			}
			if err := c.exec(ctx, a.Steps); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown verb %q", a.Do)
	}

	return c.settle(ctx, a.Settle)
}

// settle waits d and then checks for cancellation.
func (c *cycle) settle(ctx context.Context, d time.Duration) error {
	if d > 0 {
		if err := c.opts.Sleep(ctx, d); err != nil {
			return core.ErrCancelled.WithCause(err)
		}
	}
	return c.checkpoint(ctx)
}

func (c *cycle) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.ErrCancelled.WithCause(err)
	}
	return nil
}

func (c *cycle) present(ctx context.Context, texts ...string) bool {
	_, ok := c.deps.Nodes.FirstPresent(ctx, texts...)
	return ok
}
