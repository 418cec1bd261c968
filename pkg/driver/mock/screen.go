package mock

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

// Node is one element on the fake screen.
type Node struct {
	Text      string
	ID        string
	Desc      string
	Class     string
	Bounds    core.Bounds
	Clickable bool
	Focused   bool
}

// Screen is the mutable state the mock device shows.
type Screen struct {
	mu      sync.Mutex
	nodes   []Node
	regions map[image.Point]string
}

// NewScreen returns an empty screen.
func NewScreen() *Screen {
	return &Screen{regions: make(map[image.Point]string)}
}

// Add puts nodes on screen.
func (s *Screen) Add(nodes ...Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, nodes...)
}

// ShowText adds a plain text node for each text.
func (s *Screen) ShowText(texts ...string) {
	for _, t := range texts {
		s.Add(Node{Text: t, Class: "android.widget.TextView", Bounds: core.Bounds{X: 0, Y: 0, Width: 100, Height: 40}})
	}
}

// HideText removes every node whose text equals t.
func (s *Screen) HideText(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.nodes[:0]
	for _, n := range s.nodes {
		if n.Text != t {
			kept = append(kept, n)
		}
	}
	s.nodes = kept
}

// Has reports whether a node with text t is on screen.
func (s *Screen) Has(t string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.Text == t {
			return true
		}
	}
	return false
}

// SetRegionText sets what OCR returns for a crop starting at origin
// (device pixels). An empty text clears it.
func (s *Screen) SetRegionText(origin image.Point, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.regions, origin)
		return
	}
	s.regions[origin] = text
}

// RegionText returns the OCR answer for a crop starting at origin.
func (s *Screen) RegionText(origin image.Point) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regions[origin]
}

func (s *Screen) xml(pkg string, w, h int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<hierarchy rotation="0">` + "\n")
	fmt.Fprintf(&b, `  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="%s" bounds="[0,0][%d,%d]" clickable="false" enabled="true">`+"\n",
		attr(pkg), w, h)
	for i, n := range s.nodes {
		class := n.Class
		if class == "" {
			class = "android.view.View"
		}
		fmt.Fprintf(&b, `    <node index="%d" text="%s" resource-id="%s" content-desc="%s" class="%s" package="%s" bounds="%s" clickable="%t" enabled="true" focused="%t"/>`+"\n",
			i, attr(n.Text), attr(n.ID), attr(n.Desc), attr(class), attr(pkg), n.Bounds, n.Clickable, n.Focused)
	}
	b.WriteString("  </node>\n</hierarchy>\n")
	return b.String()
}

func attr(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// encodeCoordinateImage draws pixel (x,y) as the 24-bit value y*w+x.
func encodeCoordinateImage(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := y*w + x
			img.SetRGBA(x, y, color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeOrigin reads the screen position of a crop's first pixel.
func decodeOrigin(img image.Image, screenWidth int) image.Point {
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Min.X, b.Min.Y).RGBA()
	v := int(r>>8)<<16 | int(g>>8)<<8 | int(bl>>8)
	return image.Pt(v%screenWidth, v/screenWidth)
}
