// Package coords maps reference-resolution coordinates to the device's
// actual display.
//
// All layout constants are authored against a 1080x2340 screen. A Scaler
// is fixed once per run with the real display size; until then it scales
// by 1.0, so callers must check Initialized before trusting its output.
package coords

import (
	"fmt"
	"image"
	"sync"
)

// Reference display the layout was authored on.
const (
	BaseWidth  = 1080
	BaseHeight = 2340
)

// Point is a position in reference-resolution pixels.
type Point struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y int) Point { return Point{X: x, Y: y} }

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Region is a rectangle in reference-resolution pixels.
type Region struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Rect is shorthand for Region{x, y, w, h}.
func Rect(x, y, w, h int) Region { return Region{X: x, Y: y, Width: w, Height: h} }

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.Width, r.Height)
}

// Factor is runtime resolution divided by reference resolution.
type Factor struct {
	X float64 `json:"scaleX"`
	Y float64 `json:"scaleY"`
}

// Scaler holds the scale factor for one run.
type Scaler struct {
	mu          sync.RWMutex
	factor      Factor
	width       int
	height      int
	initialized bool
}

// NewScaler returns a Scaler with identity scaling.
func NewScaler() *Scaler {
	return &Scaler{factor: Factor{X: 1, Y: 1}, width: BaseWidth, height: BaseHeight}
}

// Init fixes the factor against the device display. Only the first call
// has effect; every read during a run must use the same factor.
func (s *Scaler) Init(deviceWidth, deviceHeight int) error {
	if deviceWidth <= 0 || deviceHeight <= 0 {
		return fmt.Errorf("invalid display size %dx%d", deviceWidth, deviceHeight)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}
	s.width = deviceWidth
	s.height = deviceHeight
	s.factor = Factor{
		X: float64(deviceWidth) / BaseWidth,
		Y: float64(deviceHeight) / BaseHeight,
	}
	s.initialized = true
	return nil
}

// Initialized reports whether Init has fixed a real factor.
func (s *Scaler) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Factor returns the current scale factor.
func (s *Scaler) Factor() Factor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factor
}

// ScalePoint truncates x*sx and y*sy.
func (s *Scaler) ScalePoint(p Point) (int, int) {
	f := s.Factor()
	return int(float64(p.X) * f.X), int(float64(p.Y) * f.Y)
}

// ScaleRect scales position and extent independently, each the same way
// ScalePoint scales a coordinate.
func (s *Scaler) ScaleRect(r Region) image.Rectangle {
	f := s.Factor()
	x := int(float64(r.X) * f.X)
	y := int(float64(r.Y) * f.Y)
	w := int(float64(r.Width) * f.X)
	h := int(float64(r.Height) * f.Y)
	return image.Rect(x, y, x+w, y+h)
}

// Info describes the reference and device resolutions for the run log.
func (s *Scaler) Info() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("reference %dx%d, device %dx%d, scale %.3f x %.3f",
		BaseWidth, BaseHeight, s.width, s.height, s.factor.X, s.factor.Y)
}
