package uiautomator2

import (
	"context"
	"fmt"
	"time"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/device"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/uiautomator2"
)

// ConnectOptions configures Connect.
type ConnectOptions struct {
	Serial       string
	StartTimeout time.Duration
}

// Connection owns the device, server and session behind a Driver.
type Connection struct {
	Driver *Driver
	Device *device.AndroidDevice
	client *uiautomator2.Client
}

// Connect attaches to a device, starts the UIAutomator2 server and opens a
// session.
func Connect(ctx context.Context, opts ConnectOptions) (*Connection, error) {
	if opts.Serial != "" {
		logger.Info("Connecting to Android device: %s", opts.Serial)
	} else {
		logger.Info("Auto-detecting Android device...")
	}
	dev, err := device.New(ctx, opts.Serial)
	if err != nil {
		return nil, core.ErrDeviceNotReady.WithCause(err)
	}

	info, err := dev.Info(ctx)
	if err != nil {
		return nil, core.ErrDeviceNotReady.WithCause(err)
	}
	logger.Info("Device info: %s %s, SDK %s, Serial %s, Emulator: %v",
		info.Brand, info.Model, info.SDK, info.Serial, info.IsEmulator)

	if !dev.IsInstalled(ctx, device.UIAutomator2Server) {
		return nil, core.ErrDeviceNotReady.WithMessage(
			fmt.Sprintf("%s is not installed on %s", device.UIAutomator2Server, dev.Serial()))
	}

	cfg := device.DefaultServerConfig()
	if opts.StartTimeout > 0 {
		cfg.Timeout = opts.StartTimeout
	}
	if err := dev.StartUIAutomator2(ctx, cfg); err != nil {
		return nil, core.ErrServerUnreachable.WithCause(err)
	}

	var client *uiautomator2.Client
	if dev.SocketPath() != "" {
		client = uiautomator2.NewClient(dev.SocketPath())
	} else {
		client = uiautomator2.NewClientTCP(dev.LocalPort())
	}

	caps := uiautomator2.Capabilities{PlatformName: "Android", DeviceName: info.Model}
	if err := client.CreateSession(ctx, caps); err != nil {
		dev.StopUIAutomator2(ctx)
		return nil, core.ErrServerUnreachable.WithCause(fmt.Errorf("create session: %w", err))
	}
	logger.Info("Session created: %s", client.SessionID())

	// Reads must not wait for the target app to go idle; it animates constantly.
	if err := client.UpdateSettings(ctx, map[string]interface{}{"waitForIdleTimeout": 0}); err != nil {
		logger.Warn("update settings: %v", err)
	}

	platform := &core.PlatformInfo{
		DeviceID:   info.Serial,
		DeviceName: fmt.Sprintf("%s %s", info.Brand, info.Model),
		OSVersion:  info.Release,
		SDKVersion: info.SDK,
	}

	return &Connection{
		Driver: New(client, platform, dev),
		Device: dev,
		client: client,
	}, nil
}

// Close deletes the session and stops the server.
func (c *Connection) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.client.Close()
	c.Device.StopUIAutomator2(ctx)
}
