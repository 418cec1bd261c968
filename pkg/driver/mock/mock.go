// Package mock provides a scripted in-memory device for tests and dry runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// ActionKind names a recorded device call.
type ActionKind string

const (
	ActionTap       ActionKind = "tap"
	ActionLongPress ActionKind = "longPress"
	ActionKey       ActionKind = "key"
	ActionClipboard ActionKind = "clipboard"
	ActionLaunch    ActionKind = "launch"
)

// Action is one journal entry.
type Action struct {
	Kind ActionKind
	X, Y int
	Hold time.Duration
	Key  core.Key
	Text string
}

func (a Action) String() string {
	switch a.Kind {
	case ActionTap:
		return fmt.Sprintf("tap(%d,%d)", a.X, a.Y)
	case ActionLongPress:
		return fmt.Sprintf("longPress(%d,%d,%v)", a.X, a.Y, a.Hold)
	case ActionKey:
		return "key(" + a.Key.String() + ")"
	default:
		return fmt.Sprintf("%s(%s)", a.Kind, a.Text)
	}
}

// Config configures mock driver behavior.
type Config struct {
	// Width and Height default to the reference resolution.
	Width, Height int
	DeviceID      string
	// Foreground is the initial foreground package.
	Foreground string
	// ActionDelay adds artificial delay per action.
	ActionDelay time.Duration
	// FailOn makes every action of a kind fail with the given error.
	FailOn map[ActionKind]error
}

// Driver is a mock implementation of core.Driver.
type Driver struct {
	Config Config

	mu         sync.Mutex
	screen     *Screen
	actions    []Action
	clipboard  string
	foreground string
	tapHooks   []tapHook
	keyHooks   map[core.Key]func(*Screen)
	screenshot []byte
}

type tapHook struct {
	at coords.Point
	fn func(*Screen)
}

// New creates a new mock driver with an empty screen.
func New(cfg Config) *Driver {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = coords.BaseWidth, coords.BaseHeight
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-device"
	}
	return &Driver{
		Config:     cfg,
		screen:     NewScreen(),
		foreground: cfg.Foreground,
		keyHooks:   make(map[core.Key]func(*Screen)),
	}
}

// Screen returns the live screen. Changes are visible to the next read.
func (d *Driver) Screen() *Screen { return d.screen }

// OnTap runs fn whenever a tap lands exactly on p (device pixels).
func (d *Driver) OnTap(p coords.Point, fn func(*Screen)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tapHooks = append(d.tapHooks, tapHook{at: p, fn: fn})
}

// OnKey runs fn whenever key is pressed.
func (d *Driver) OnKey(key core.Key, fn func(*Screen)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyHooks[key] = fn
}

// Actions returns a copy of the journal.
func (d *Driver) Actions() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Action, len(d.actions))
	copy(out, d.actions)
	return out
}

// Taps returns how many taps landed on p.
func (d *Driver) Taps(p coords.Point) int {
	n := 0
	for _, a := range d.Actions() {
		if a.Kind == ActionTap && a.X == p.X && a.Y == p.Y {
			n++
		}
	}
	return n
}

// Clipboard returns the last clipboard text.
func (d *Driver) Clipboard() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clipboard
}

func (d *Driver) record(ctx context.Context, a Action) error {
	if d.Config.ActionDelay > 0 {
		t := time.NewTimer(d.Config.ActionDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := d.Config.FailOn[a.Kind]; err != nil {
		return err
	}

	d.mu.Lock()
	d.actions = append(d.actions, a)
	var hooks []func(*Screen)
	switch a.Kind {
	case ActionTap:
		for _, h := range d.tapHooks {
			if h.at.X == a.X && h.at.Y == a.Y {
				hooks = append(hooks, h.fn)
			}
		}
	case ActionKey:
		if fn := d.keyHooks[a.Key]; fn != nil {
			hooks = append(hooks, fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(d.screen)
	}
	return nil
}

// Tap records a tap.
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	return d.record(ctx, Action{Kind: ActionTap, X: x, Y: y})
}

// LongPress records a long press.
func (d *Driver) LongPress(ctx context.Context, x, y int, hold time.Duration) error {
	return d.record(ctx, Action{Kind: ActionLongPress, X: x, Y: y, Hold: hold})
}

// PressKey records a key press.
func (d *Driver) PressKey(ctx context.Context, key core.Key) error {
	return d.record(ctx, Action{Kind: ActionKey, Key: key})
}

// SetClipboard records and stores clipboard text.
func (d *Driver) SetClipboard(ctx context.Context, text string) error {
	if err := d.record(ctx, Action{Kind: ActionClipboard, Text: text}); err != nil {
		return err
	}
	d.mu.Lock()
	d.clipboard = text
	d.mu.Unlock()
	return nil
}

// LaunchApp records a launch and makes pkg the foreground.
func (d *Driver) LaunchApp(ctx context.Context, pkg string) error {
	if err := d.record(ctx, Action{Kind: ActionLaunch, Text: pkg}); err != nil {
		return err
	}
	d.SetForeground(pkg)
	return nil
}

// SetForeground changes the reported foreground package.
func (d *Driver) SetForeground(pkg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = pkg
}

// ForegroundPackage returns the current foreground package.
func (d *Driver) ForegroundPackage(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.foreground == "" {
		return "", fmt.Errorf("no focused window")
	}
	return d.foreground, nil
}

// Screenshot returns a PNG whose pixels encode their own coordinates, so
// the paired OCR can tell which region it was handed.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.screenshot == nil {
		data, err := encodeCoordinateImage(d.Config.Width, d.Config.Height)
		if err != nil {
			return nil, err
		}
		d.screenshot = data
	}
	return d.screenshot, nil
}

// Source renders the screen's nodes as UIAutomator XML.
func (d *Driver) Source(ctx context.Context) (string, error) {
	d.mu.Lock()
	pkg := d.foreground
	d.mu.Unlock()
	return d.screen.xml(pkg, d.Config.Width, d.Config.Height), nil
}

// PlatformInfo returns mock platform info.
func (d *Driver) PlatformInfo(ctx context.Context) (*core.PlatformInfo, error) {
	return &core.PlatformInfo{
		DeviceID:     d.Config.DeviceID,
		DeviceName:   "Mock Device",
		OSVersion:    "14",
		SDKVersion:   "34",
		ScreenWidth:  d.Config.Width,
		ScreenHeight: d.Config.Height,
	}, nil
}

// Close is a no-op.
func (d *Driver) Close() error { return nil }

var _ core.Driver = (*Driver)(nil)
