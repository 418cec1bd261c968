package sensor

import (
	"context"

	"github.com/yuwei/yunduanban-runner/pkg/core"
	"github.com/yuwei/yunduanban-runner/pkg/hierarchy"
)

// ScreenCapturer captures frames through a driver screenshot.
type ScreenCapturer struct {
	Driver core.Driver
}

// Capture implements Capturer.
func (c ScreenCapturer) Capture(ctx context.Context) (Frame, error) {
	data, err := c.Driver.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	return DecodePNG(data)
}

// DriverTrees fetches and parses the driver's page source.
type DriverTrees struct {
	Driver core.Driver
}

// Tree implements TreeSource.
func (s DriverTrees) Tree(ctx context.Context) (*hierarchy.Tree, error) {
	xml, err := s.Driver.Source(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.Parse(xml)
}
