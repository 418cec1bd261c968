package mock

import (
	"image"
	"sync"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// Scenario is a happy-path script: every checkpoint passes and each work
// item is consumed when the device sees the delete confirmation tap.
type Scenario struct {
	Plates []string
	// ItemRegion is where the next plate is read.
	ItemRegion coords.Region
	// Headers are fixed OCR answers, keyed by region.
	Headers map[coords.Region]string
	// Texts are shown as nodes for the whole run.
	Texts []string
	// IDs are shown as clickable nodes with these resource ids.
	IDs []string
	// AdvanceOn consumes the current plate.
	AdvanceOn coords.Point
	// SourcePackage is the app the engine starts in.
	SourcePackage string
}

// NewScenario builds a device at the reference resolution playing sc.
func NewScenario(sc Scenario) *Driver {
	d := New(Config{Foreground: sc.SourcePackage})
	s := d.Screen()

	for r, text := range sc.Headers {
		s.SetRegionText(image.Pt(r.X, r.Y), text)
	}
	s.ShowText(sc.Texts...)
	for i, id := range sc.IDs {
		s.Add(Node{
			ID:        id,
			Class:     "android.widget.Button",
			Bounds:    core.Bounds{X: 0, Y: 2000 + i*10, Width: 540, Height: 200},
			Clickable: true,
		})
	}
	s.Add(Node{
		Class:     "android.widget.EditText",
		Bounds:    core.Bounds{X: 50, Y: 300, Width: 800, Height: 80},
		Clickable: true,
	})

	var mu sync.Mutex
	queue := append([]string(nil), sc.Plates...)
	origin := image.Pt(sc.ItemRegion.X, sc.ItemRegion.Y)
	show := func(s *Screen) {
		if len(queue) > 0 {
			s.SetRegionText(origin, queue[0])
		} else {
			s.SetRegionText(origin, "")
		}
	}
	show(s)

	d.OnTap(sc.AdvanceOn, func(s *Screen) {
		mu.Lock()
		defer mu.Unlock()
		if len(queue) > 0 {
			queue = queue[1:]
		}
		show(s)
	})
	return d
}
