package input

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/driver/mock"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
)

type waits struct{ got []time.Duration }

func (w *waits) wait(ctx context.Context, d time.Duration) error {
	w.got = append(w.got, d)
	return nil
}

func halfScaler(t *testing.T) *coords.Scaler {
	t.Helper()
	s := coords.NewScaler()
	if err := s.Init(540, 1170); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTapScales(t *testing.T) {
	d := mock.New(mock.Config{Width: 540, Height: 1170})
	x := New(d, halfScaler(t))

	if err := x.Tap(context.Background(), coords.Pt(995, 352)); err != nil {
		t.Fatalf("Tap failed: %v", err)
	}
	if err := x.LongPress(context.Background(), coords.Pt(332, 1950), 700*time.Millisecond); err != nil {
		t.Fatalf("LongPress failed: %v", err)
	}

	actions := d.Actions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %v", actions)
	}
	if actions[0].X != 497 || actions[0].Y != 176 {
		t.Errorf("tap not scaled: %v", actions[0])
	}
	if actions[1].X != 166 || actions[1].Y != 975 || actions[1].Hold != 700*time.Millisecond {
		t.Errorf("long press not scaled: %v", actions[1])
	}
}

func TestTapNodeUsesDevicePixels(t *testing.T) {
	d := mock.New(mock.Config{Width: 540, Height: 1170})
	x := New(d, halfScaler(t))

	n := &hierarchy.Node{Bounds: core.Bounds{X: 100, Y: 200, Width: 40, Height: 20}}
	if err := x.TapNode(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if got := d.Taps(coords.Pt(120, 210)); got != 1 {
		t.Errorf("expected tap at node center, journal %v", d.Actions())
	}
	if err := x.TapNode(context.Background(), nil); err == nil {
		t.Error("expected error for nil node")
	}
}

func TestBackExtraSettleWhenUnchanged(t *testing.T) {
	d := mock.New(mock.Config{Foreground: "com.yunduanban.app"})
	w := &waits{}
	x := New(d, coords.NewScaler(), WithWait(w.wait))

	if err := x.Back(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.got) != 1 || w.got[0] != BackSettle {
		t.Errorf("expected one extra settle, got %v", w.got)
	}

	d.OnKey(core.KeyBack, func(*mock.Screen) { d.SetForeground("com.android.launcher") })
	w.got = nil
	if err := x.Back(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(w.got) != 0 {
		t.Errorf("no settle expected after the foreground changed, got %v", w.got)
	}
}

func TestRecents(t *testing.T) {
	d := mock.New(mock.Config{})
	x := New(d, coords.NewScaler())
	_ = x.Recents(context.Background())

	a := d.Actions()
	if len(a) != 1 || a[0].Key != core.KeyAppSwitch {
		t.Errorf("unexpected journal %v", a)
	}
}

func TestPasteTextFocusesField(t *testing.T) {
	d := mock.New(mock.Config{Foreground: "com.yunduanban.app"})
	d.Screen().Add(mock.Node{Class: "android.widget.EditText", Bounds: core.Bounds{X: 50, Y: 300, Width: 800, Height: 80}})
	q := sensor.NewNodeQuery(sensor.DriverTrees{Driver: d}, d)
	x := New(d, coords.NewScaler(), WithEditableFinder(q))

	if err := x.PasteText(context.Background(), "张三"); err != nil {
		t.Fatal(err)
	}

	a := d.Actions()
	if len(a) != 3 {
		t.Fatalf("expected clipboard, focus tap and paste, got %v", a)
	}
	if a[0].Kind != mock.ActionClipboard || a[0].Text != "张三" {
		t.Errorf("clipboard not set first: %v", a[0])
	}
	if a[1].Kind != mock.ActionTap || a[1].X != 450 || a[1].Y != 340 {
		t.Errorf("expected focus tap on field center, got %v", a[1])
	}
	if a[2].Kind != mock.ActionKey || a[2].Key != core.KeyPaste {
		t.Errorf("expected paste key last, got %v", a[2])
	}
}

func TestPasteTextFocusFailureNotFatal(t *testing.T) {
	d := mock.New(mock.Config{FailOn: map[mock.ActionKind]error{mock.ActionTap: errors.New("injection denied")}})
	d.Screen().Add(mock.Node{Class: "android.widget.EditText", Bounds: core.Bounds{X: 0, Y: 0, Width: 10, Height: 10}})
	q := sensor.NewNodeQuery(sensor.DriverTrees{Driver: d}, d)
	x := New(d, coords.NewScaler(), WithEditableFinder(q))

	if err := x.PasteText(context.Background(), "李四"); err != nil {
		t.Fatalf("focus failure should not fail the paste: %v", err)
	}
	a := d.Actions()
	if len(a) != 2 || a[1].Key != core.KeyPaste {
		t.Errorf("expected paste despite focus failure, got %v", a)
	}
}

func TestDispatchTimeout(t *testing.T) {
	d := mock.New(mock.Config{ActionDelay: time.Second})
	x := New(d, coords.NewScaler(), WithTimeout(10*time.Millisecond))

	err := x.Tap(context.Background(), coords.Pt(1, 1))
	if !errors.Is(err, core.ErrDispatchTimeout) {
		t.Errorf("expected dispatch timeout, got %v", err)
	}
}

func TestLaunchApp(t *testing.T) {
	d := mock.New(mock.Config{})
	x := New(d, coords.NewScaler())

	if err := x.LaunchApp(context.Background(), "com.tencent.weworklocal"); err != nil {
		t.Fatal(err)
	}
	if pkg, _ := d.ForegroundPackage(context.Background()); pkg != "com.tencent.weworklocal" {
		t.Errorf("foreground = %q", pkg)
	}
}
