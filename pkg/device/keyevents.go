package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// KeyEvent is one decoded line of `getevent -lq`.
type KeyEvent struct {
	Device string // input device node, e.g. /dev/input/event1
	Code   string // e.g. KEY_VOLUMEUP
	Action string // DOWN, UP or REPEAT
}

// parseKeyEvent decodes "/dev/input/event1: EV_KEY KEY_VOLUMEUP DOWN".
func parseKeyEvent(line string) (KeyEvent, bool) {
	dev, rest, ok := strings.Cut(line, ":")
	if !ok {
		return KeyEvent{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 3 || fields[0] != "EV_KEY" {
		return KeyEvent{}, false
	}
	return KeyEvent{Device: strings.TrimSpace(dev), Code: fields[1], Action: fields[2]}, true
}

// WatchKeys streams hardware key events until ctx is done. onKey is
// called from the reading goroutine.
func (d *AndroidDevice) WatchKeys(ctx context.Context, onKey func(KeyEvent)) error {
	args := []string{"shell", "getevent", "-lq"}
	if d.serial != "" {
		args = append([]string{"-s", d.serial}, args...)
	}
	cmd := exec.CommandContext(ctx, d.adbPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("getevent pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start getevent: %w", err)
	}

	scanEvents(stdout, onKey)

	err = cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("getevent exited: %w", err)
	}
	return nil
}

func scanEvents(r io.Reader, onKey func(KeyEvent)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ev, ok := parseKeyEvent(scanner.Text()); ok {
			onKey(ev)
		}
	}
}

// IsVolumeUpPress reports a volume-up key going down.
func (e KeyEvent) IsVolumeUpPress() bool {
	return e.Code == "KEY_VOLUMEUP" && e.Action == "DOWN"
}
