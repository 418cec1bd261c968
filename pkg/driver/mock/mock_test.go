package mock

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
)

func TestJournalAndHooks(t *testing.T) {
	d := New(Config{Width: 100, Height: 100})
	ctx := context.Background()

	d.OnTap(coords.Pt(10, 20), func(s *Screen) { s.ShowText("已删除") })
	d.OnKey(core.KeyAppSwitch, func(s *Screen) { s.ShowText("最近任务") })

	_ = d.Tap(ctx, 10, 20)
	_ = d.Tap(ctx, 11, 20)
	_ = d.PressKey(ctx, core.KeyAppSwitch)

	if !d.Screen().Has("已删除") || !d.Screen().Has("最近任务") {
		t.Error("hooks did not run")
	}
	if got := d.Taps(coords.Pt(10, 20)); got != 1 {
		t.Errorf("expected 1 tap at (10,20), got %d", got)
	}
	if got := len(d.Actions()); got != 3 {
		t.Errorf("expected 3 actions, got %d", got)
	}
}

func TestFailOn(t *testing.T) {
	boom := errors.New("boom")
	d := New(Config{FailOn: map[ActionKind]error{ActionClipboard: boom}})

	if err := d.SetClipboard(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if d.Clipboard() != "" {
		t.Error("clipboard changed on failure")
	}
}

func TestSourceParses(t *testing.T) {
	d := New(Config{Foreground: "com.yunduanban.app"})
	d.Screen().Add(Node{ID: "com.yunduanban.app:id/btnKd", Clickable: true, Bounds: core.Bounds{X: 0, Y: 2000, Width: 540, Height: 200}})
	d.Screen().ShowText("简易A版", `a<b>&"c"`)

	src, err := d.Source(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	tree, err := hierarchy.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v\n%s", err, src)
	}
	if tree.FindByID("com.yunduanban.app:id/btnKd") == nil {
		t.Error("btnKd missing")
	}
	if tree.FindByText(`a<b>&"c"`) == nil {
		t.Error("escaped text did not round trip")
	}
	if tree.Package() != "com.yunduanban.app" {
		t.Errorf("package = %q", tree.Package())
	}

	d.Screen().HideText("简易A版")
	src, _ = d.Source(context.Background())
	tree, _ = hierarchy.Parse(src)
	if tree.FindByText("简易A版") != nil {
		t.Error("hidden text still present")
	}
}

func TestOCRReadsRegionByOrigin(t *testing.T) {
	d := New(Config{Width: 200, Height: 300})
	d.Screen().SetRegionText(image.Pt(15, 188), "粤A12345")

	ocr := d.OCR()
	r := sensor.NewTextReader(sensor.ScreenCapturer{Driver: d}, ocr, coords.NewScaler(), nil)

	got, ok := r.ReadText(context.Background(), image.Rect(15, 188, 48, 200))
	if !ok || got != "粤A12345" {
		t.Errorf("ReadText = %q, %v", got, ok)
	}
	if _, ok := r.ReadText(context.Background(), image.Rect(16, 188, 48, 200)); ok {
		t.Error("other origin should read nothing")
	}
	if ocr.Calls() != 2 {
		t.Errorf("expected 2 ocr calls, got %d", ocr.Calls())
	}
}

func TestScenarioAdvances(t *testing.T) {
	item := coords.Rect(150, 1888, 333, 116)
	del := coords.Pt(834, 1251)
	d := NewScenario(Scenario{
		Plates:        []string{"粤A1", "粤A2"},
		ItemRegion:    item,
		Headers:       map[coords.Region]string{coords.Rect(450, 128, 165, 75): "云端办"},
		Texts:         []string{"简易A版"},
		IDs:           []string{"com.yunduanban.app:id/btnKd"},
		AdvanceOn:     del,
		SourcePackage: "com.tencent.weworklocal",
	})
	s := d.Screen()
	origin := image.Pt(item.X, item.Y)
	ctx := context.Background()

	if got := s.RegionText(origin); got != "粤A1" {
		t.Fatalf("first plate = %q", got)
	}
	_ = d.Tap(ctx, del.X, del.Y)
	if got := s.RegionText(origin); got != "粤A2" {
		t.Fatalf("second plate = %q", got)
	}
	_ = d.Tap(ctx, del.X, del.Y)
	if got := s.RegionText(origin); got != "" {
		t.Fatalf("expected no plate left, got %q", got)
	}
	if s.RegionText(image.Pt(450, 128)) != "云端办" {
		t.Error("header missing")
	}
	if pkg, _ := d.ForegroundPackage(ctx); pkg != "com.tencent.weworklocal" {
		t.Errorf("foreground = %q", pkg)
	}
}
