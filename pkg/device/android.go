// Package device provides Android device management via ADB.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// runFunc executes a host binary and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial     string
	adbPath    string
	socketPath string // Unix socket path for UIAutomator2 (Linux/Mac)
	localPort  int    // TCP port for UIAutomator2 (Windows)
	run        runFunc
}

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Release    string
	Brand      string
	IsEmulator bool
}

// ListedDevice is one row of `adb devices`.
type ListedDevice struct {
	Serial string
	State  string
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the connected device.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}

	d := &AndroidDevice{serial: serial, adbPath: adbPath, run: execRun}

	if serial == "" {
		d.serial, err = d.detectSerial(ctx)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}

	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}

	return d, nil
}

// ListDevices returns every device adb knows about.
func ListDevices(ctx context.Context) ([]ListedDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	out, err := execRun(ctx, adbPath, "devices")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

func parseDevices(out string) []ListedDevice {
	var devices []ListedDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			devices = append(devices, ListedDevice{Serial: parts[0], State: parts[1]})
		}
	}
	return devices
}

func (d *AndroidDevice) detectSerial(ctx context.Context) (string, error) {
	out, err := d.run(ctx, d.adbPath, "devices")
	if err != nil {
		return "", err
	}
	for _, dev := range parseDevices(out) {
		if dev.State == "device" {
			return dev.Serial, nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true
		}
	}
	return false
}

// LaunchApp brings pkg to the foreground through its launcher activity.
func (d *AndroidDevice) LaunchApp(ctx context.Context, pkg string) error {
	if pkg == "" {
		return fmt.Errorf("empty package name")
	}
	out, err := d.Shell(ctx, fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", pkg))
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("no launchable activity for %s", pkg)
	}
	return nil
}

// ForegroundPackage returns the package owning the focused window.
func (d *AndroidDevice) ForegroundPackage(ctx context.Context) (string, error) {
	out, err := d.Shell(ctx, "dumpsys window | grep -E 'mCurrentFocus|mFocusedApp'")
	if err != nil {
		return "", err
	}
	pkg := parseFocusedPackage(out)
	if pkg == "" {
		return "", fmt.Errorf("no focused window")
	}
	return pkg, nil
}

var focusRe = regexp.MustCompile(`(?:mCurrentFocus|mFocusedApp)=.*?\s([A-Za-z][\w.]*)/[\w.$]+`)

// parseFocusedPackage prefers mCurrentFocus over mFocusedApp.
func parseFocusedPackage(out string) string {
	var fallback string
	for _, line := range strings.Split(out, "\n") {
		m := focusRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if strings.Contains(line, "mCurrentFocus") {
			return m[1]
		}
		if fallback == "" {
			fallback = m[1]
		}
	}
	return fallback
}

// ScreenSize returns the display size in pixels, honoring an override.
func (d *AndroidDevice) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := d.Shell(ctx, "wm size")
	if err != nil {
		return 0, 0, err
	}
	return parseWMSize(out)
}

var wmSizeRe = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

func parseWMSize(out string) (int, int, error) {
	w, h := 0, 0
	for _, m := range wmSizeRe.FindAllStringSubmatch(out, -1) {
		mw, _ := strconv.Atoi(m[2])
		mh, _ := strconv.Atoi(m[3])
		if m[1] == "Override" || w == 0 {
			w, h = mw, mh
		}
	}
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("unrecognized wm size output %q", strings.TrimSpace(out))
	}
	return w, h, nil
}

// Forward creates a port forward from local to device.
func (d *AndroidDevice) Forward(ctx context.Context, localPort, remotePort int) error {
	_, err := d.adb(ctx, "forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveForward removes a port forward.
func (d *AndroidDevice) RemoveForward(ctx context.Context, localPort int) error {
	_, err := d.adb(ctx, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// ForwardSocket forwards a Unix socket to a device TCP port.
func (d *AndroidDevice) ForwardSocket(ctx context.Context, socketPath string, remotePort int) error {
	_, err := d.adb(ctx, "forward", "localfilesystem:"+socketPath, fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveSocketForward removes a Unix socket forward.
func (d *AndroidDevice) RemoveSocketForward(ctx context.Context, socketPath string) error {
	_, err := d.adb(ctx, "forward", "--remove", "localfilesystem:"+socketPath)
	return err
}

// DefaultSocketPath returns the default Unix socket path for this device.
func (d *AndroidDevice) DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("uia2-%s.sock", d.serial))
}

// SocketPath returns the current UIAutomator2 socket path (empty if not started or on Windows).
func (d *AndroidDevice) SocketPath() string {
	return d.socketPath
}

// LocalPort returns the current UIAutomator2 TCP port (0 if not started or on Linux/Mac).
func (d *AndroidDevice) LocalPort() int {
	return d.localPort
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	prop := func(name string) string {
		out, err := d.Shell(ctx, "getprop "+name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(out)
	}

	info.Model = prop("ro.product.model")
	info.SDK = prop("ro.build.version.sdk")
	info.Release = prop("ro.build.version.release")
	info.Brand = prop("ro.product.brand")
	info.IsEmulator = prop("ro.kernel.qemu") == "1"

	if info.Model == "" && info.SDK == "" {
		return info, fmt.Errorf("device %s did not answer getprop", d.serial)
	}
	return info, nil
}

// adb executes an ADB command against this device.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)
	return d.run(ctx, d.adbPath, cmdArgs...)
}

func execRun(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("%s %s: %w: %s", filepath.Base(name), strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}

	return stdout.String(), nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if d.isConnected(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for device %s", d.serial)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adb(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "device"
}

// findADB locates the ADB binary on PATH or under ANDROID_HOME.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if root := os.Getenv(env); root != "" {
			p := filepath.Join(root, "platform-tools", "adb")
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android platform-tools are installed")
}
