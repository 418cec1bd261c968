package cli

import (
	"fmt"
	"os"

	"github.com/yuwei/yunduanban-runner/pkg/core"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// colorsEnabled is off for NO_COLOR, for non-terminal stdout and for
// --no-ansi.
var colorsEnabled = stdoutIsTerminal() && os.Getenv("NO_COLOR") == ""

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// paint wraps s in c and a reset.
func paint(c, s string) string {
	return color(c) + s + color(colorReset)
}

var levelColors = map[core.LogLevel]string{
	core.LevelWarning: colorYellow,
	core.LevelError:   colorRed,
	core.LevelSuccess: colorGreen,
}

var outcomeColors = map[core.OutcomeKind]string{
	core.OutcomeCompleted:    colorGreen,
	core.OutcomeAborted:      colorRed,
	core.OutcomeLimitReached: colorYellow,
	core.OutcomeCancelled:    colorYellow,
}

func printSetupStep(msg string)    { fmt.Printf("  %s %s\n", paint(colorCyan, "⏳"), msg) }
func printSetupSuccess(msg string) { fmt.Printf("  %s %s\n", paint(colorGreen, "✓"), msg) }
func printWarning(msg string)      { fmt.Printf("  %s %s\n", paint(colorYellow, "⚠"), msg) }
