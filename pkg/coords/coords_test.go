package coords

import (
	"math"
	"strings"
	"testing"
)

func TestScaler_IdentityBeforeInit(t *testing.T) {
	s := NewScaler()
	if s.Initialized() {
		t.Fatal("expected new scaler to be uninitialized")
	}
	x, y := s.ScalePoint(Pt(332, 1950))
	if x != 332 || y != 1950 {
		t.Errorf("expected identity (332,1950), got (%d,%d)", x, y)
	}
}

func TestScaler_InitRejectsInvalidSize(t *testing.T) {
	s := NewScaler()
	if err := s.Init(0, 2340); err == nil {
		t.Error("expected error for zero width")
	}
	if s.Initialized() {
		t.Error("scaler should stay uninitialized after a rejected Init")
	}
}

func TestScaler_InitOnlyOnce(t *testing.T) {
	s := NewScaler()
	if err := s.Init(720, 1560); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Init(1440, 3120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := s.Factor()
	if math.Abs(f.X-720.0/1080) > 1e-9 || math.Abs(f.Y-1560.0/2340) > 1e-9 {
		t.Errorf("factor changed after second Init: %+v", f)
	}
}

func TestScaler_ScalePointTruncates(t *testing.T) {
	sizes := [][2]int{{1080, 2340}, {720, 1600}, {1440, 3200}, {1080, 2400}, {1170, 2532}, {800, 1280}}
	points := []Point{Pt(0, 0), Pt(150, 1888), Pt(995, 352), Pt(1079, 2339), Pt(333, 117), Pt(1, 1)}

	for _, size := range sizes {
		s := NewScaler()
		if err := s.Init(size[0], size[1]); err != nil {
			t.Fatalf("Init(%v): %v", size, err)
		}
		sx := float64(size[0]) / BaseWidth
		sy := float64(size[1]) / BaseHeight
		for _, p := range points {
			x, y := s.ScalePoint(p)
			wantX := int(math.Floor(float64(p.X) * sx))
			wantY := int(math.Floor(float64(p.Y) * sy))
			if x != wantX || y != wantY {
				t.Errorf("size %v: ScalePoint(%v) = (%d,%d), want (%d,%d)", size, p, x, y, wantX, wantY)
			}
		}
	}
}

func TestScaler_ScaleRectConsistentWithPoint(t *testing.T) {
	s := NewScaler()
	if err := s.Init(720, 1600); err != nil {
		t.Fatal(err)
	}
	regions := []Region{Rect(150, 1888, 333, 116), Rect(450, 128, 165, 75), Rect(324, 128, 502, 73)}
	for _, r := range regions {
		got := s.ScaleRect(r)
		x, y := s.ScalePoint(Pt(r.X, r.Y))
		w, h := s.ScalePoint(Pt(r.Width, r.Height))
		if got.Min.X != x || got.Min.Y != y {
			t.Errorf("ScaleRect(%v) origin = %v, want (%d,%d)", r, got.Min, x, y)
		}
		if got.Dx() != w || got.Dy() != h {
			t.Errorf("ScaleRect(%v) extent = %dx%d, want %dx%d", r, got.Dx(), got.Dy(), w, h)
		}
	}
}

func TestScaler_Info(t *testing.T) {
	s := NewScaler()
	_ = s.Init(720, 1560)
	info := s.Info()
	if !strings.Contains(info, "1080x2340") || !strings.Contains(info, "720x1560") {
		t.Errorf("unexpected info %q", info)
	}
}
