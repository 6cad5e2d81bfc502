package source

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/render"
	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("dashboard", newDashboard)
}

// Dashboard renders fleet health onto a panel: per display the live
// online state, last success and last error. It is the system's feedback
// channel for delivery health, fed entirely by the status poller and the
// update history.
type Dashboard struct {
	logger  *zap.Logger
	status  StatusProvider
	title   string
	timeout time.Duration
	showIP  bool
	now     func() time.Time
}

func newDashboard(name string, cfg Config, deps Deps) (Source, error) {
	if deps.Status == nil {
		return nil, fmt.Errorf("dashboard requires fleet status access")
	}
	return &Dashboard{
		logger:  deps.Logger,
		status:  deps.Status,
		title:   cfg.String("title", "Display Status"),
		timeout: time.Duration(cfg.Int("timeout_seconds", 3)) * time.Second,
		showIP:  cfg.Bool("show_ip", true),
		now:     time.Now,
	}, nil
}

func (d *Dashboard) ShouldUpdate() bool { return true }

type displayStatus struct {
	report  models.StatusReport
	history models.UpdateRecord
}

func (d *Dashboard) gather(ctx context.Context) []displayStatus {
	reports := d.status.PollAll(ctx, d.timeout)
	histories := d.status.History()

	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]displayStatus, 0, len(names))
	for _, name := range names {
		out = append(out, displayStatus{
			report:  reports[name],
			history: histories[name],
		})
	}
	return out
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.Format("01/02/2006 3:04 PM")
}

func (d *Dashboard) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	canvas := render.NewCanvas(width, height)

	var titleSize, nameSize, detailSize float64
	switch {
	case width >= 600:
		titleSize, nameSize, detailSize = 28, 20, 16
	case width >= 400:
		titleSize, nameSize, detailSize = 22, 16, 12
	default:
		titleSize, nameSize, detailSize = 18, 14, 10
	}
	titleFace := render.BoldFace(titleSize)
	nameFace := render.BoldFace(nameSize)
	detailFace := render.Face(detailSize)

	margin := 10
	y := margin + int(titleSize)

	canvas.Text(margin, y, d.title, titleFace, render.Black)
	canvas.TextRight(width-margin, y, d.now().Format("01/02/2006 3:04 PM"), detailFace, render.Black)
	y += 10
	canvas.HLine(margin, width-margin, y, 1, render.Black)
	y += 10

	displays := d.gather(ctx)
	if len(displays) == 0 {
		canvas.Text(margin, y+int(nameSize), "No displays configured", nameFace, render.Black)
		return canvas.RGBA, nil
	}

	errColor := render.Black
	if mode == models.TriColor {
		errColor = render.Red
	}

	online := 0
	for _, ds := range displays {
		if y+int(nameSize)+2*int(detailSize) > height-40 {
			canvas.Text(margin, y+int(detailSize), "...", detailFace, render.Black)
			break
		}

		rep := ds.report
		if rep.Online {
			online++
		}

		indicator := "Off"
		indicatorCol := errColor
		if rep.Online {
			indicator = "On"
			indicatorCol = render.Black
		}
		y += int(nameSize)
		canvas.Text(margin, y, indicator, nameFace, indicatorCol)

		res := rep.ReportedResolution
		if res == "" {
			res = rep.ConfiguredResolution
		}
		modeName := rep.ReportedMode
		if modeName == "" {
			modeName = rep.ConfiguredMode
		}
		nameX := margin + 45
		canvas.Text(nameX, y, fmt.Sprintf("%s: %s %s", rep.Name, res, modeName), nameFace, render.Black)
		if d.showIP {
			canvas.TextRight(width-margin, y, rep.Addr, detailFace, grayOrBlack(mode))
		}
		y += 4

		y += int(detailSize) + 2
		canvas.Text(nameX, y, "Last Success: "+formatTimestamp(ds.history.LastSuccess), detailFace, render.Black)

		if ds.history.LastError != nil {
			y += int(detailSize) + 2
			canvas.Text(nameX, y, "Last Error: "+formatTimestamp(ds.history.LastError), detailFace, errColor)
		}
		y += 10
	}

	y = height - 35
	canvas.HLine(margin, width-margin, y, 1, render.Black)
	summary := fmt.Sprintf("%d configured | %d online | %d offline",
		len(displays), online, len(displays)-online)
	canvas.Text(margin, y+int(detailSize)+6, summary, detailFace, render.Black)

	return canvas.RGBA, nil
}

func (d *Dashboard) Cleanup() error { return nil }
