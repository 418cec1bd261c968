package mock

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync/atomic"
)

// OCR answers recognition requests from the screen's region texts.
type OCR struct {
	d     *Driver
	calls atomic.Int64
	// Err, when set, fails every request.
	Err error
}

// OCR returns a recognizer paired with this device's screenshots.
func (d *Driver) OCR() *OCR {
	return &OCR{d: d}
}

// Calls returns how many requests were made.
func (o *OCR) Calls() int { return int(o.calls.Load()) }

// ExtractText decodes the crop, finds where it came from and returns the
// text registered for that origin.
func (o *OCR) ExtractText(ctx context.Context, data []byte, format string) (string, error) {
	o.calls.Add(1)
	if o.Err != nil {
		return "", o.Err
	}
	if format != "png" {
		return "", fmt.Errorf("unsupported format %q", format)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	origin := decodeOrigin(img, o.d.Config.Width)
	return o.d.screen.RegionText(origin), nil
}
