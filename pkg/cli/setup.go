package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yuwei/yunduanban-runner/pkg/config"
	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/device"
	"github.com/yuwei/yunduanban-runner/pkg/driver/mock"
	uia2driver "github.com/yuwei/yunduanban-runner/pkg/driver/uiautomator2"
	"github.com/yuwei/yunduanban-runner/pkg/input"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/ocr"
	"github.com/yuwei/yunduanban-runner/pkg/report"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
	"github.com/yuwei/yunduanban-runner/pkg/sink"
	"github.com/yuwei/yunduanban-runner/pkg/workflow"
)

// env is what every command needs before touching a device.
type env struct {
	cfg       *config.Config
	layout    *workflow.Layout
	sink      *sink.Sink
	operators *config.Operators
}

// loadEnv resolves config, opens the diagnostic log and the state dir.
func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Resolve(c.String("config"))
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}
	if d := c.String("device"); d != "" {
		cfg.Device = d
	}
	if l := c.String("layout"); l != "" {
		cfg.Layout = l
	}

	logPath := filepath.Join(config.GetLogDir(), time.Now().Format("2006-01-02")+".log")
	if err := logger.Init(logPath, c.Bool("verbose")); err != nil {
		printWarning(fmt.Sprintf("diagnostic log disabled: %v", err))
	}

	layout, err := workflow.LoadLayout(cfg.Layout)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}

	store, err := sink.NewStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("open state dir: %w", err)
	}
	ops, err := config.OpenOperators(cfg.StateDir, cfg.Operators)
	if err != nil {
		return nil, fmt.Errorf("open operators: %w", err)
	}

	return &env{
		cfg:       cfg,
		layout:    layout,
		sink:      sink.New(sink.WithStore(store)),
		operators: ops,
	}, nil
}

// session is a connected device plus its recognizer.
type session struct {
	driver core.Driver
	ocr    ocr.Client
	// android is nil for the mock device.
	android *device.AndroidDevice
	close   func()
}

// connect attaches to the configured device, or builds a scripted mock
// device when dryRun is set.
func (e *env) connect(ctx context.Context, dryRun bool, plates []string) (*session, error) {
	if dryRun {
		d := e.dryRunDevice(plates)
		printSetupSuccess(fmt.Sprintf("Dry run with %d scripted plates", len(plates)))
		return &session{driver: d, ocr: d.OCR(), close: func() {}}, nil
	}

	if e.cfg.Device != "" {
		printSetupStep(fmt.Sprintf("Connecting to device %s...", e.cfg.Device))
	} else {
		printSetupStep("Connecting to device...")
	}
	conn, err := uia2driver.Connect(ctx, uia2driver.ConnectOptions{Serial: e.cfg.Device})
	if err != nil {
		return nil, err
	}
	info, err := conn.Driver.PlatformInfo(ctx)
	if err == nil {
		printSetupSuccess(fmt.Sprintf("Connected to %s (Android %s, %dx%d)",
			info.DeviceName, info.OSVersion, info.ScreenWidth, info.ScreenHeight))
	}

	client := ocr.NewHTTPClient(e.cfg.OCR.URL,
		ocr.WithTimeout(e.cfg.OCR.Timeout),
		ocr.WithMinConfidence(e.cfg.OCR.MinConfidence))
	if err := client.Ping(ctx); err != nil {
		printWarning(fmt.Sprintf("OCR service at %s not reachable: %v", e.cfg.OCR.URL, err))
	}

	return &session{driver: conn.Driver, ocr: client, android: conn.Device, close: conn.Close}, nil
}

// dryRunDevice plays the default happy path: every checkpoint passes and
// each plate is consumed by the delete confirmation.
func (e *env) dryRunDevice(plates []string) *mock.Driver {
	advance, _ := e.layout.DeleteTap()
	return mock.NewScenario(mock.Scenario{
		Plates:     plates,
		ItemRegion: e.layout.ItemRegion,
		Headers: map[coords.Region]string{
			e.layout.Destination.Region:  e.layout.Destination.Expect,
			e.layout.Confirmation.Region: e.layout.Confirmation.Expect,
		},
		IDs:           []string{e.cfg.CreateControlID},
		AdvanceOn:     advance,
		SourcePackage: e.cfg.SourcePackage,
	})
}

// newEngine wires sensors, dispatcher and sink around a session.
func (e *env) newEngine(s *session, sleep workflow.Sleeper) *workflow.Engine {
	scaler := coords.NewScaler()
	nodes := sensor.NewNodeQuery(sensor.DriverTrees{Driver: s.driver}, s.driver)
	reader := sensor.NewTextReader(sensor.ScreenCapturer{Driver: s.driver}, s.ocr, scaler, nil)
	dispatcher := input.New(s.driver, scaler,
		input.WithTimeout(e.cfg.DispatchTimeout),
		input.WithEditableFinder(nodes))

	return workflow.New(workflow.Deps{
		Reader:   reader,
		Nodes:    nodes,
		Input:    dispatcher,
		Recorder: e.sink,
		Scaler:   scaler,
		Display:  s.driver,
		Reporter: report.NewWriter(e.cfg.StateDir, s.driver, e.cfg.Artifacts),
	}, e.layout, workflow.Options{
		MaxCycles:       e.cfg.MaxCycles,
		SourcePackage:   e.cfg.SourcePackage,
		CreateControlID: e.cfg.CreateControlID,
		Retry:           sensor.RetryPolicy{Attempts: e.cfg.Sense.Attempts, Delay: e.cfg.Sense.Delay},
		Sleep:           sleep,
	})
}

// watchVolumeUp stops the engine when the device's volume-up key is
// pressed. It returns when ctx ends.
func watchVolumeUp(ctx context.Context, dev *device.AndroidDevice, engine *workflow.Engine) error {
	if dev == nil {
		<-ctx.Done()
		return nil
	}
	return dev.WatchKeys(ctx, func(ev device.KeyEvent) {
		if ev.IsVolumeUpPress() {
			logger.Info("volume up on %s", ev.Device)
			engine.StopOnKey(core.KeyVolumeUp)
		}
	})
}

// fastSleep skips settle delays but still honors cancellation; dry runs use it.
func fastSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
