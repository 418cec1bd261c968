package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yuwei/yunduanban-runner/pkg/coords"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
	"github.com/yuwei/yunduanban-runner/pkg/logger"
	"github.com/yuwei/yunduanban-runner/pkg/sensor"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy of the connected device",
	Description: `Print the accessibility tree of the current screen, one node per line,
for finding texts and resource ids when calibrating a layout.

Examples:
  yunduanban-runner hierarchy
  yunduanban-runner hierarchy --raw > screen.xml`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "Print the UIAutomator XML as returned",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Read from the scripted in-memory device",
		},
	},
	Action: runHierarchy,
}

var probeCommand = &cli.Command{
	Name:  "probe",
	Usage: "OCR one region of the current screen",
	Description: `Reads the text in a reference-resolution region (1080x2340), scaled to
the device, exactly as the run loop would.

Examples:
  yunduanban-runner probe --region 450,128,165,75
  yunduanban-runner probe --item`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "region",
			Usage: "x,y,width,height in reference pixels",
		},
		&cli.BoolFlag{
			Name:  "item",
			Usage: "Probe the layout's work-item region",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Read from the scripted in-memory device",
		},
	},
	Action: runProbe,
}

func runHierarchy(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := context.Background()
	s, err := e.connect(ctx, c.Bool("dry-run"), defaultDryRunPlates)
	if err != nil {
		return err
	}
	defer s.close()

	xml, err := s.driver.Source(ctx)
	if err != nil {
		return fmt.Errorf("page source: %w", err)
	}
	if c.Bool("raw") {
		fmt.Println(xml)
		return nil
	}
	tree, err := hierarchy.Parse(xml)
	if err != nil {
		return err
	}
	return tree.Dump(os.Stdout)
}

// parseRegion parses "x,y,w,h".
func parseRegion(s string) (coords.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return coords.Region{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return coords.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return coords.Region{}, fmt.Errorf("region %q: width and height must be positive", s)
	}
	return coords.Rect(v[0], v[1], v[2], v[3]), nil
}

func runProbe(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	var region coords.Region
	switch {
	case c.Bool("item"):
		region = e.layout.ItemRegion
	case c.String("region") != "":
		if region, err = parseRegion(c.String("region")); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pass --region or --item")
	}

	ctx := context.Background()
	s, err := e.connect(ctx, c.Bool("dry-run"), defaultDryRunPlates)
	if err != nil {
		return err
	}
	defer s.close()

	info, err := s.driver.PlatformInfo(ctx)
	if err != nil {
		return err
	}
	scaler := coords.NewScaler()
	if err := scaler.Init(info.ScreenWidth, info.ScreenHeight); err != nil {
		return err
	}

	var readErr error
	reader := sensor.NewTextReader(sensor.ScreenCapturer{Driver: s.driver}, s.ocr, scaler,
		func(err error) { readErr = err })
	text, ok := reader.ReadRegion(ctx, region)

	fmt.Printf("  %s %s -> %v\n", paint(colorGray, "region"), region, scaler.ScaleRect(region))
	switch {
	case readErr != nil:
		return readErr
	case !ok:
		printWarning("no text")
	default:
		fmt.Printf("  %s\n", paint(colorBold, fmt.Sprintf("%q", text)))
	}
	return nil
}
