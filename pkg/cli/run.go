package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/workflow"
)

var defaultDryRunPlates = []string{"粤B12345", "粤B67890", "粤B24680"}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Process work items on the connected device until none are left",
	Description: `Runs the ticketing loop in the foreground. Press Ctrl-C, or the device's
volume-up key, to stop at the next checkpoint.

Examples:
  yunduanban-runner run --operator 张三
  yunduanban-runner run --dry-run --plates 粤B1,粤B2`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "operator",
			Aliases: []string{"o"},
			Usage:   "Officer name pasted into each ticket (default: last selected)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Drive a scripted in-memory device instead of a real one",
		},
		&cli.StringSliceFlag{
			Name:  "plates",
			Usage: "Plates the dry-run device serves",
		},
		&cli.IntFlag{
			Name:  "max-cycles",
			Usage: "Override maxCycles",
		},
	},
	Action: runRun,
}

func runRun(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	if n := c.Int("max-cycles"); n > 0 {
		e.cfg.MaxCycles = n
	}
	operator := strings.TrimSpace(c.String("operator"))
	if operator == "" {
		operator = e.operators.Selected()
	}
	if operator == "" {
		return fmt.Errorf("%w: pass --operator or add one with 'operators add'", core.ErrMissingOperator)
	}
	if err := e.operators.Select(operator); err != nil {
		printWarning(fmt.Sprintf("could not save operator selection: %v", err))
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dryRun := c.Bool("dry-run")
	plates := c.StringSlice("plates")
	if len(plates) == 0 {
		plates = defaultDryRunPlates
	}
	s, err := e.connect(sigCtx, dryRun, plates)
	if err != nil {
		return err
	}
	defer s.close()

	sleep := workflow.Sleeper(nil)
	if dryRun {
		sleep = fastSleep
	}
	engine := e.newEngine(s, sleep)

	logs, unsubscribe := e.sink.Subscribe()
	defer unsubscribe()
	go func() {
		for entry := range logs {
			printLogEntry(entry)
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(sigCtx)
	defer cancelWatch()
	go func() {
		if err := watchVolumeUp(watchCtx, s.android, engine); err != nil {
			logger.Warn("key watcher: %v", err)
		}
	}()
	go func() {
		<-sigCtx.Done()
		engine.Stop()
	}()

	fmt.Printf("\n  %s %s\n\n", paint(colorBold, "Operator:"), operator)
	summary, err := engine.Run(context.Background(), operator)
	if err != nil {
		return err
	}

	printSummary(summary)
	if summary.Final.Kind == core.OutcomeAborted {
		return fmt.Errorf("run aborted: %s", summary.Final.Reason)
	}
	return nil
}

func printLogEntry(e core.LogEntry) {
	fmt.Printf("  %s %s\n", paint(colorGray, e.Timestamp.Format("15:04:05")), paint(levelColors[e.Level], e.Message))
}

func printSummary(s *core.RunSummary) {
	fmt.Println()
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %s  %s\n", paint(colorBold, "Run "+s.RunID), s.Duration.Round(time.Millisecond))
	fmt.Printf("  Completed: %s  Skipped: %d  Cycles: %d\n", paint(colorGreen, fmt.Sprint(s.Completed)), s.Skipped, s.Cycles)
	fmt.Printf("  Ended: %s\n", paint(outcomeColors[s.Final.Kind], s.Final.String()))
}
