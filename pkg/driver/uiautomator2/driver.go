// Package uiautomator2 adapts the UIAutomator2 HTTP client and the ADB
// device into core.Driver.
package uiautomator2

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/uiautomator2"
)

// UIA2Client defines the client calls the driver needs.
// Implemented by uiautomator2.Client. Allows mocking in tests.
type UIA2Client interface {
	Click(ctx context.Context, x, y int) error
	LongClick(ctx context.Context, x, y, durationMs int) error
	PressKeyCode(ctx context.Context, keyCode int) error
	Back(ctx context.Context) error

	Screenshot(ctx context.Context) ([]byte, error)
	Source(ctx context.Context) (string, error)
	SetClipboard(ctx context.Context, text string) error
	CurrentPackage(ctx context.Context) (string, error)
	GetDeviceInfo(ctx context.Context) (*uiautomator2.DeviceInfo, error)

	Close() error
}

// DeviceShell is the ADB side of the driver.
// Implemented by device.AndroidDevice.
type DeviceShell interface {
	LaunchApp(ctx context.Context, pkg string) error
	ForegroundPackage(ctx context.Context) (string, error)
	ScreenSize(ctx context.Context) (int, int, error)
}

// Driver implements core.Driver using UIAutomator2.
type Driver struct {
	client UIA2Client
	device DeviceShell
	info   *core.PlatformInfo
}

// New creates a new UIAutomator2 driver. device may be nil, in which case
// app launch is unavailable and package/size queries go to the server.
func New(client UIA2Client, info *core.PlatformInfo, device DeviceShell) *Driver {
	if info == nil {
		info = &core.PlatformInfo{}
	}
	return &Driver{client: client, device: device, info: info}
}

// Tap clicks a device-pixel point.
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	if err := d.client.Click(ctx, x, y); err != nil {
		return fmt.Errorf("tap (%d,%d): %w", x, y, err)
	}
	return nil
}

// LongPress holds a device-pixel point.
func (d *Driver) LongPress(ctx context.Context, x, y int, dur time.Duration) error {
	if err := d.client.LongClick(ctx, x, y, int(dur/time.Millisecond)); err != nil {
		return fmt.Errorf("long press (%d,%d): %w", x, y, err)
	}
	return nil
}

// PressKey sends a keycode. Back uses the dedicated endpoint.
func (d *Driver) PressKey(ctx context.Context, key core.Key) error {
	var err error
	if key == core.KeyBack {
		err = d.client.Back(ctx)
	} else {
		err = d.client.PressKeyCode(ctx, int(key))
	}
	if err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// SetClipboard sets plain-text clipboard content.
func (d *Driver) SetClipboard(ctx context.Context, text string) error {
	if err := d.client.SetClipboard(ctx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// LaunchApp starts pkg through ADB.
func (d *Driver) LaunchApp(ctx context.Context, pkg string) error {
	if pkg == "" {
		return fmt.Errorf("no package specified")
	}
	if d.device == nil {
		return fmt.Errorf("launch %s: device not configured", pkg)
	}
	logger.Info("Launching %s", pkg)
	return d.device.LaunchApp(ctx, pkg)
}

// ForegroundPackage asks the server first and falls back to dumpsys.
func (d *Driver) ForegroundPackage(ctx context.Context) (string, error) {
	pkg, err := d.client.CurrentPackage(ctx)
	if err == nil && strings.TrimSpace(pkg) != "" {
		return strings.TrimSpace(pkg), nil
	}
	if d.device == nil {
		if err == nil {
			err = fmt.Errorf("empty package")
		}
		return "", fmt.Errorf("foreground package: %w", err)
	}
	return d.device.ForegroundPackage(ctx)
}

// Screenshot returns a PNG of the screen.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.client.Screenshot(ctx)
}

// Source returns the accessibility tree XML.
func (d *Driver) Source(ctx context.Context) (string, error) {
	return d.client.Source(ctx)
}

// PlatformInfo returns the device details, filling the display size on
// first use.
func (d *Driver) PlatformInfo(ctx context.Context) (*core.PlatformInfo, error) {
	if d.info.ScreenWidth > 0 && d.info.ScreenHeight > 0 {
		return d.info, nil
	}

	w, h, err := d.displaySize(ctx)
	if err != nil {
		return nil, err
	}
	d.info.ScreenWidth = w
	d.info.ScreenHeight = h
	return d.info, nil
}

func (d *Driver) displaySize(ctx context.Context) (int, int, error) {
	if d.device != nil {
		w, h, err := d.device.ScreenSize(ctx)
		if err == nil {
			return w, h, nil
		}
		logger.Warn("wm size failed, asking server: %v", err)
	}

	info, err := d.client.GetDeviceInfo(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("display size: %w", err)
	}
	return info.DisplaySize()
}

// Close ends the client session.
func (d *Driver) Close() error {
	return d.client.Close()
}

var _ core.Driver = (*Driver)(nil)
