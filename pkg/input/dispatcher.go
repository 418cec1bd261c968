// Package input sends scaled gestures, keys and text to the device.
package input

import (
	"context"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
)

// DefaultTimeout bounds each dispatch.
const DefaultTimeout = 5 * time.Second

// BackSettle is the extra wait when Back leaves the foreground unchanged.
const BackSettle = 300 * time.Millisecond

// EditableFinder locates the first text input on screen.
type EditableFinder interface {
	FindEditable(ctx context.Context) *hierarchy.Node
}

// Dispatcher turns reference-resolution actions into driver calls. A
// failed dispatch is reported and logged; it never panics.
type Dispatcher struct {
	driver  core.Driver
	scaler  *coords.Scaler
	fields  EditableFinder
	timeout time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the per-dispatch timeout.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) {
		if d > 0 {
			x.timeout = d
		}
	}
}

// WithWait replaces the sleep used by Back.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(x *Dispatcher) { x.wait = wait }
}

// WithEditableFinder sets how PasteText finds the field to focus.
func WithEditableFinder(f EditableFinder) Option {
	return func(x *Dispatcher) { x.fields = f }
}

// New creates a dispatcher.
func New(driver core.Driver, scaler *coords.Scaler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		driver:  driver,
		scaler:  scaler,
		timeout: DefaultTimeout,
		wait:    sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) do(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		err = core.ErrDispatchTimeout.WithCause(err)
	}
	logger.Warn("%s: %v", what, err)
	return err
}

// Tap taps a reference-resolution point.
func (d *Dispatcher) Tap(ctx context.Context, p coords.Point) error {
	x, y := d.scaler.ScalePoint(p)
	logger.Debug("tap %v -> (%d,%d)", p, x, y)
	return d.do(ctx, "tap "+p.String(), func(ctx context.Context) error {
		return d.driver.Tap(ctx, x, y)
	})
}

// LongPress holds a reference-resolution point for dur.
func (d *Dispatcher) LongPress(ctx context.Context, p coords.Point, dur time.Duration) error {
	x, y := d.scaler.ScalePoint(p)
	logger.Debug("long press %v -> (%d,%d) for %v", p, x, y, dur)
	return d.do(ctx, "long press "+p.String(), func(ctx context.Context) error {
		return d.driver.LongPress(ctx, x, y, dur)
	})
}

// TapNode taps the center of a node. Node bounds are already in device
// pixels.
func (d *Dispatcher) TapNode(ctx context.Context, n *hierarchy.Node) error {
	if n == nil {
		return core.ErrNodeNotFound
	}
	x, y := n.Bounds.Center()
	logger.Debug("tap node %s at (%d,%d)", n.Label(), x, y)
	return d.do(ctx, "tap node "+n.Label(), func(ctx context.Context) error {
		return d.driver.Tap(ctx, x, y)
	})
}

// Recents opens the app switcher.
func (d *Dispatcher) Recents(ctx context.Context) error {
	return d.do(ctx, "recents", func(ctx context.Context) error {
		return d.driver.PressKey(ctx, core.KeyAppSwitch)
	})
}

// Back presses Back. If the foreground package did not change, it waits
// a little longer for the screen to catch up.
func (d *Dispatcher) Back(ctx context.Context) error {
	before, _ := d.driver.ForegroundPackage(ctx)

	if err := d.do(ctx, "back", func(ctx context.Context) error {
		return d.driver.PressKey(ctx, core.KeyBack)
	}); err != nil {
		return err
	}

	after, _ := d.driver.ForegroundPackage(ctx)
	if before != "" && before == after {
		return d.wait(ctx, BackSettle)
	}
	return nil
}

// PasteText puts text on the clipboard, focuses the first text field if
// there is one, then sends the paste key. The text is sent as is.
func (d *Dispatcher) PasteText(ctx context.Context, text string) error {
	if err := d.do(ctx, "set clipboard", func(ctx context.Context) error {
		return d.driver.SetClipboard(ctx, text)
	}); err != nil {
		return err
	}

	if d.fields != nil {
		if field := d.fields.FindEditable(ctx); field != nil && !field.Focused {
			// Paste still goes out if focusing fails.
			_ = d.TapNode(ctx, field)
		}
	}

	return d.do(ctx, "paste", func(ctx context.Context) error {
		return d.driver.PressKey(ctx, core.KeyPaste)
	})
}

// LaunchApp brings pkg to the foreground.
func (d *Dispatcher) LaunchApp(ctx context.Context, pkg string) error {
	return d.do(ctx, "launch "+pkg, func(ctx context.Context) error {
		return d.driver.LaunchApp(ctx, pkg)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
