// Package ocr talks to the text-recognition service.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client extracts text from an encoded image.
type Client interface {
	ExtractText(ctx context.Context, imageData []byte, format string) (string, error)
}

// HTTPClient posts images to a PaddleOCR-serving style endpoint:
//
//	POST {"images": ["<base64>"]}
//	200  {"status": "000", "msg": "", "results": [[{"text": "...", "confidence": 0.98}]]}
type HTTPClient struct {
	url           string
	http          *http.Client
	minConfidence float64
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds each recognition request.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithMinConfidence drops lines the engine is unsure about.
func WithMinConfidence(v float64) Option {
	return func(c *HTTPClient) { c.minConfidence = v }
}

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// NewHTTPClient creates a client for the service at url.
func NewHTTPClient(url string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type recognizeRequest struct {
	Images []string `json:"images"`
}

type recognizeResponse struct {
	Status  string   `json:"status"`
	Msg     string   `json:"msg"`
	Results [][]line `json:"results"`
}

type line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ExtractText returns the recognized lines joined by newlines. The format
// argument is informational; the service sniffs the encoding itself.
func (c *HTTPClient) ExtractText(ctx context.Context, imageData []byte, format string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty %s image", format)
	}
	body, err := json.Marshal(recognizeRequest{Images: []string{base64.StdEncoding.EncodeToString(imageData)}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ocr service error %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out recognizeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if out.Status != "" && out.Status != "000" {
		return "", fmt.Errorf("ocr service status %s: %s", out.Status, out.Msg)
	}

	var lines []string
	for _, img := range out.Results {
		for _, l := range img {
			if l.Confidence < c.minConfidence {
				continue
			}
			if t := strings.TrimSpace(l.Text); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Ping checks that the service answers at all.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ocr service unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
