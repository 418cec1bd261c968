package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yuwei/yunduanban-runner/pkg/api"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/workflow"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the control API for a host UI",
	Description: `Connects to the device and waits for start/stop requests over HTTP.
State transitions and log entries are pushed on /ws.

Examples:
  yunduanban-runner serve
  yunduanban-runner serve --listen 0.0.0.0:8765 --schedule "30 8 * * 1-5"`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Address to listen on (default from config)",
		},
		&cli.StringFlag{
			Name:  "schedule",
			Usage: "Cron spec that starts a run for the selected operator",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Drive a scripted in-memory device instead of a real one",
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	if l := c.String("listen"); l != "" {
		e.cfg.Listen = l
	}
	if s := c.String("schedule"); s != "" {
		e.cfg.Schedule = s
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dryRun := c.Bool("dry-run")
	s, err := e.connect(ctx, dryRun, defaultDryRunPlates)
	if err != nil {
		return err
	}
	defer s.close()

	sleep := workflow.Sleeper(nil)
	if dryRun {
		sleep = fastSleep
	}
	engine := e.newEngine(s, sleep)

	srv := api.NewServer(engine, e.sink, e.operators)
	srv.SetReportRoot(e.cfg.StateDir)
	var sched *api.Scheduler
	if e.cfg.Schedule != "" {
		sched, err = api.NewScheduler(e.cfg.Schedule, api.ScheduledStart(engine, e.sink, e.operators))
		if err != nil {
			return err
		}
		srv.SetScheduler(sched)
	}

	httpServer := &http.Server{
		Addr:              e.cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSetupSuccess(fmt.Sprintf("Listening on http://%s", e.cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Losing the key watcher only loses the hardware stop.
		if err := watchVolumeUp(gctx, s.android, engine); err != nil {
			logger.Warn("key watcher: %v", err)
		}
		return nil
	})
	if sched != nil {
		sched.Start()
		if next, ok := sched.Next(); ok {
			printSetupSuccess(fmt.Sprintf("Next scheduled run at %s", next.Format("2006-01-02 15:04")))
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		if sched != nil {
			sched.Stop()
		}
		engine.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := engine.Wait(shutdownCtx); err != nil {
			logger.Warn("engine did not stop in time: %v", err)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
