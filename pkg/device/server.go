package device

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"
)

// UIAutomator2 server packages. Both must be installed.
const (
	UIAutomator2Server = "io.appium.uiautomator2.server"
	UIAutomator2Test   = "io.appium.uiautomator2.server.test"
)

// Forward transports.
const (
	TransportSocket = "socket" // adb forward localfilesystem:, not on windows
	TransportTCP    = "tcp"
)

const (
	defaultDevicePort = 6790
	tcpPortFirst      = 6001
	tcpPortLast       = 7001
)

// ServerConfig controls how the on-device server is started and reached.
type ServerConfig struct {
	Transport  string        // empty picks socket, or tcp on windows
	SocketPath string        // socket transport; empty uses DefaultSocketPath
	LocalPort  int           // tcp transport; 0 finds a free port
	DevicePort int           // server port on the device
	Timeout    time.Duration // readiness deadline
	Poll       time.Duration // readiness poll interval
}

// DefaultServerConfig returns the usual settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		DevicePort: defaultDevicePort,
		Timeout:    30 * time.Second,
		Poll:       500 * time.Millisecond,
	}
}

func (c ServerConfig) withDefaults() ServerConfig {
	d := DefaultServerConfig()
	if c.Transport == "" {
		c.Transport = TransportSocket
		if runtime.GOOS == "windows" {
			c.Transport = TransportTCP
		}
	}
	if c.DevicePort == 0 {
		c.DevicePort = d.DevicePort
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Poll == 0 {
		c.Poll = d.Poll
	}
	return c
}

// StartUIAutomator2 forwards the server port and launches the
// instrumentation, returning once the server answers /status. A server
// still healthy behind an existing socket forward is reused.
func (d *AndroidDevice) StartUIAutomator2(ctx context.Context, cfg ServerConfig) error {
	cfg = cfg.withDefaults()

	for _, pkg := range []string{UIAutomator2Server, UIAutomator2Test} {
		if !d.IsInstalled(ctx, pkg) {
			return fmt.Errorf("%s is not installed", pkg)
		}
	}

	if cfg.Transport == TransportSocket {
		path := cfg.SocketPath
		if path == "" {
			path = d.DefaultSocketPath()
		}
		if _, err := os.Stat(path); err == nil && probeStatus(ctx, socketClient(path), "http://localhost/status") {
			d.socketPath = path
			return nil
		}
	}

	d.StopUIAutomator2(ctx)
	if err := d.forward(ctx, cfg); err != nil {
		return err
	}

	instrument := "nohup am instrument -w -e disableAnalytics true " +
		UIAutomator2Test + "/androidx.test.runner.AndroidJUnitRunner > /dev/null 2>&1 &"
	if _, err := d.Shell(ctx, instrument); err != nil {
		return fmt.Errorf("start instrumentation: %w", err)
	}

	if err := d.waitReady(ctx, cfg); err != nil {
		d.StopUIAutomator2(ctx)
		return err
	}
	return nil
}

func (d *AndroidDevice) forward(ctx context.Context, cfg ServerConfig) error {
	if cfg.Transport == TransportTCP {
		port := cfg.LocalPort
		if port == 0 {
			var err error
			if port, err = findFreePort(tcpPortFirst, tcpPortLast); err != nil {
				return err
			}
		}
		if err := d.Forward(ctx, port, cfg.DevicePort); err != nil {
			return fmt.Errorf("port forward: %w", err)
		}
		d.localPort = port
		return nil
	}

	path := cfg.SocketPath
	if path == "" {
		path = d.DefaultSocketPath()
	}
	_ = os.Remove(path)
	if err := d.ForwardSocket(ctx, path, cfg.DevicePort); err != nil {
		return fmt.Errorf("socket forward: %w", err)
	}
	d.socketPath = path
	return nil
}

func (d *AndroidDevice) waitReady(ctx context.Context, cfg ServerConfig) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()
	for {
		if d.serverHealthy(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("uiautomator2 server not ready after %v", cfg.Timeout)
		case <-ticker.C:
		}
	}
}

// StopUIAutomator2 stops the server and removes its forward. Errors are
// ignored; the processes may already be gone.
func (d *AndroidDevice) StopUIAutomator2(ctx context.Context) {
	_, _ = d.Shell(ctx, "am force-stop "+UIAutomator2Server)
	_, _ = d.Shell(ctx, "am force-stop "+UIAutomator2Test)

	if d.socketPath != "" {
		_ = d.RemoveSocketForward(ctx, d.socketPath)
		_ = os.Remove(d.socketPath)
		d.socketPath = ""
	}
	if d.localPort != 0 {
		_ = d.RemoveForward(ctx, d.localPort)
		d.localPort = 0
	}
}

func (d *AndroidDevice) serverHealthy(ctx context.Context) bool {
	switch {
	case d.socketPath != "":
		return probeStatus(ctx, socketClient(d.socketPath), "http://localhost/status")
	case d.localPort != 0:
		return probeStatus(ctx, &http.Client{Timeout: 2 * time.Second}, fmt.Sprintf("http://127.0.0.1:%d/status", d.localPort))
	}
	return false
}

func socketClient(path string) *http.Client {
	return &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var dialer net.Dialer
				return dialer.DialContext(ctx, "unix", path)
			},
		},
	}
}

func probeStatus(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func findFreePort(first, last int) (int, error) {
	for port := first; port <= last; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port in %d-%d", first, last)
}
