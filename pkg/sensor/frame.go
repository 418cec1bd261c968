// Package sensor reads the screen: OCR over a region of a fresh capture,
// and queries over the accessibility tree.
package sensor

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"sync"
)

// Frame is one full-screen capture. Release must be called once the
// caller is done with the image.
type Frame interface {
	Image() image.Image
	Release()
}

// Capturer produces full-screen frames. Only one capture may be
// outstanding at a time.
type Capturer interface {
	Capture(ctx context.Context) (Frame, error)
}

// imageFrame wraps a decoded image.
type imageFrame struct {
	img     image.Image
	release func()
}

func (f *imageFrame) Image() image.Image { return f.img }

func (f *imageFrame) Release() {
	if f.release != nil {
		f.release()
		f.release = nil
	}
	f.img = nil
}

// NewFrame wraps img. onRelease may be nil.
func NewFrame(img image.Image, onRelease func()) Frame {
	return &imageFrame{img: img, release: onRelease}
}

// DecodePNG turns screenshot bytes into a Frame.
func DecodePNG(data []byte) (Frame, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return NewFrame(img, nil), nil
}

var cropPool = sync.Pool{
	New: func() any { return new(image.RGBA) },
}

// crop copies r out of src into a pooled buffer. r is clamped to the
// source bounds; ok is false when nothing is left after clamping.
func crop(src image.Image, r image.Rectangle) (Frame, bool) {
	r = r.Intersect(src.Bounds())
	if r.Empty() {
		return nil, false
	}

	dst := cropPool.Get().(*image.RGBA)
	n := 4 * r.Dx() * r.Dy()
	if cap(dst.Pix) < n {
		dst.Pix = make([]uint8, n)
	}
	dst.Pix = dst.Pix[:n]
	dst.Stride = 4 * r.Dx()
	dst.Rect = image.Rect(0, 0, r.Dx(), r.Dy())

	draw.Draw(dst, dst.Rect, src, r.Min, draw.Src)

	return NewFrame(dst, func() { cropPool.Put(dst) }), true
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// encodePNG encodes img into a pooled buffer; call the returned func to
// give the buffer back.
func encodePNG(img image.Image) ([]byte, func(), error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(buf, img); err != nil {
		bufPool.Put(buf)
		return nil, func() {}, err
	}
	return buf.Bytes(), func() { bufPool.Put(buf) }, nil
}
