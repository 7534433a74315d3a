package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
)

// Monitor represents a physical display. ID is the RandR output id, which
// stays stable while the output is connected.
type Monitor struct {
	ID      uint32
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Primary bool
	// RefreshMillihertz is 0 when the mode timings are unknown.
	RefreshMillihertz int
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	conn := c.XUtil.Conn()

	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	modes := make(map[uint32]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modes[m.Id] = m
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		output := crtcInfo.Outputs[0]
		name := fmt.Sprintf("Monitor%d", i)
		if outputInfo, err := randr.GetOutputInfo(conn, output, resources.ConfigTimestamp).Reply(); err == nil {
			name = string(outputInfo.Name)
		}

		mon := Monitor{
			ID:     uint32(output),
			Name:   name,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		}
		for _, o := range crtcInfo.Outputs {
			if primary != 0 && o == primary {
				mon.Primary = true
				mon.ID = uint32(o)
			}
		}
		if mode, ok := modes[uint32(crtcInfo.Mode)]; ok {
			mon.RefreshMillihertz = RefreshMillihertz(mode.DotClock, mode.Htotal, mode.Vtotal)
		}
		monitors = append(monitors, mon)
	}

	return monitors, nil
}

// RefreshMillihertz derives the vertical refresh rate of a mode from its
// pixel clock (Hz) and total timings. It returns 0 if either total is zero.
func RefreshMillihertz(dotClock uint32, htotal, vtotal uint16) int {
	frame := uint64(htotal) * uint64(vtotal)
	if frame == 0 || dotClock == 0 {
		return 0
	}
	return int((uint64(dotClock)*1000 + frame/2) / frame)
}
