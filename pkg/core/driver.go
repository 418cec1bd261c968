package core

import (
	"context"
	"fmt"
	"time"
)

// Bounds represents element position and size in device pixels
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Empty reports whether the bounds cover no pixels
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// PlatformInfo contains device details gathered at engine start
type PlatformInfo struct {
	DeviceID     string `json:"deviceId"`               // ADB serial
	DeviceName   string `json:"deviceName"`             // e.g., "Pixel 8"
	OSVersion    string `json:"osVersion"`              // e.g., "14"
	SDKVersion   string `json:"sdkVersion,omitempty"`   // e.g., "34"
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in pixels
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in pixels
}

// LogEntry is one line of the user-visible run log
type LogEntry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// String renders the entry as "[HH:MM:SS] [LEVEL] message"
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] [%s] %s", e.Timestamp.Format("15:04:05"), e.Level, e.Message)
}

// Key is a hardware or system key the engine can press
type Key int

// Android keycodes used by the engine
const (
	KeyBack      Key = 4
	KeyVolumeUp  Key = 24
	KeyAppSwitch Key = 187
	KeyPaste     Key = 279
)

func (k Key) String() string {
	switch k {
	case KeyBack:
		return "BACK"
	case KeyVolumeUp:
		return "VOLUME_UP"
	case KeyAppSwitch:
		return "APP_SWITCH"
	case KeyPaste:
		return "PASTE"
	default:
		return fmt.Sprintf("KEY_%d", int(k))
	}
}

// Driver is the device backend. Coordinates are device pixels; callers
// scale from the reference resolution before calling.
type Driver interface {
	Tap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y int, d time.Duration) error
	PressKey(ctx context.Context, key Key) error
	SetClipboard(ctx context.Context, text string) error
	LaunchApp(ctx context.Context, pkg string) error

	// ForegroundPackage returns the package of the focused window.
	ForegroundPackage(ctx context.Context) (string, error)
	// Screenshot returns a PNG of the full screen.
	Screenshot(ctx context.Context) ([]byte, error)
	// Source returns the accessibility tree as XML.
	Source(ctx context.Context) (string, error)

	PlatformInfo(ctx context.Context) (*PlatformInfo, error)
	Close() error
}
