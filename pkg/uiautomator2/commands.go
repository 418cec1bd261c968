package uiautomator2

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// post sends a session command that returns nothing.
func (c *Client) post(ctx context.Context, path string, in interface{}) error {
	p, err := c.session(path)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, p, in, nil)
}

// getString reads a session endpoint whose value is a string.
func (c *Client) getString(ctx context.Context, path string) (string, error) {
	p, err := c.session(path)
	if err != nil {
		return "", err
	}
	var s string
	err = c.call(ctx, http.MethodGet, p, nil, &s)
	return s, err
}

// Click taps at device coordinates.
func (c *Client) Click(ctx context.Context, x, y int) error {
	return c.post(ctx, "/appium/gestures/click", clickRequest{Offset: point{X: x, Y: y}})
}

// LongClick holds a single point for durationMs.
func (c *Client) LongClick(ctx context.Context, x, y, durationMs int) error {
	return c.post(ctx, "/appium/gestures/long_click", clickRequest{Offset: point{X: x, Y: y}, Duration: durationMs})
}

// Back presses the system back button.
func (c *Client) Back(ctx context.Context) error {
	return c.post(ctx, "/back", nil)
}

// PressKeyCode sends a key event.
func (c *Client) PressKeyCode(ctx context.Context, keyCode int) error {
	return c.post(ctx, "/appium/device/press_keycode", keyCodeRequest{KeyCode: keyCode})
}

// SetClipboard replaces the clipboard text.
func (c *Client) SetClipboard(ctx context.Context, text string) error {
	return c.post(ctx, "/appium/device/set_clipboard", clipboardRequest{
		Content:     base64.StdEncoding.EncodeToString([]byte(text)),
		ContentType: "plaintext",
	})
}

// Screenshot returns the current screen as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	b64, err := c.getString(ctx, "/screenshot")
	if err != nil {
		return nil, err
	}
	if b64 == "" {
		return nil, fmt.Errorf("empty screenshot")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}

// Source returns the accessibility hierarchy as XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	return c.getString(ctx, "/source")
}

// CurrentPackage returns the package of the foreground application.
func (c *Client) CurrentPackage(ctx context.Context) (string, error) {
	return c.getString(ctx, "/appium/device/current_package")
}

// GetDeviceInfo returns model and display information.
func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	p, err := c.session("/appium/device/info")
	if err != nil {
		return nil, err
	}
	var info DeviceInfo
	if err := c.call(ctx, http.MethodGet, p, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DisplaySize parses RealDisplaySize.
func (d *DeviceInfo) DisplaySize() (int, int, error) {
	ws, hs, ok := strings.Cut(strings.TrimSpace(d.RealDisplaySize), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid display size %q", d.RealDisplaySize)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid display width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid display height %q", hs)
	}
	return w, h, nil
}
