package sensor

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/ocr"
)

// TextReader runs OCR over screen regions.
type TextReader struct {
	capturer Capturer
	ocr      ocr.Client
	scaler   *coords.Scaler
	onError  func(error)

	// Captures are never overlapped.
	mu sync.Mutex
}

// NewTextReader builds a reader. onError receives every resource fault
// after it has been converted to "no text"; it may be nil.
func NewTextReader(capturer Capturer, client ocr.Client, scaler *coords.Scaler, onError func(error)) *TextReader {
	return &TextReader{capturer: capturer, ocr: client, scaler: scaler, onError: onError}
}

// ReadText captures the screen, crops to rect (device pixels), recognizes
// and trims. The second result is false when there is nothing to report,
// including every failure path.
func (r *TextReader) ReadText(ctx context.Context, rect image.Rectangle) (string, bool) {
	text, err := r.readText(ctx, rect)
	if core.IsCategory(err, core.ErrCategoryAbsence) {
		logger.Debug("read text %v: empty", rect)
		return "", false
	}
	if err != nil {
		logger.Warn("read text %v: %v", rect, err)
		if r.onError != nil {
			r.onError(err)
		}
		return "", false
	}
	logger.Debug("read text %v: %q", rect, text)
	return text, true
}

// ReadRegion scales a reference-resolution region and reads it.
func (r *TextReader) ReadRegion(ctx context.Context, region coords.Region) (string, bool) {
	return r.ReadText(ctx, r.scaler.ScaleRect(region))
}

func (r *TextReader) readText(ctx context.Context, rect image.Rectangle) (text string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = core.ErrRecognitionFailed.WithCause(fmt.Errorf("panic: %v", p))
		}
	}()

	frame, err := r.capturer.Capture(ctx)
	if err != nil {
		return "", core.ErrCaptureFailed.WithCause(err)
	}
	if frame == nil {
		return "", core.ErrCaptureFailed
	}
	defer frame.Release()

	cropped, ok := crop(frame.Image(), rect)
	if !ok {
		return "", core.ErrCaptureFailed.WithMessage(fmt.Sprintf("region %v outside screen", rect))
	}
	defer cropped.Release()

	data, done, err := encodePNG(cropped.Image())
	defer done()
	if err != nil {
		return "", core.ErrRecognitionFailed.WithCause(err)
	}

	raw, err := r.ocr.ExtractText(ctx, data, "png")
	if err != nil {
		return "", core.ErrRecognitionFailed.WithCause(err)
	}
	text = strings.TrimSpace(raw)
	if text == "" {
		return "", core.ErrNoText
	}
	return text, nil
}
