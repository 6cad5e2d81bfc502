package source

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/render"
	"github.com/paperframe/paperframe/pkg/models"
)

func init() {
	Register("calendar", newCalendar)
}

// calendarEvent is one agenda entry pinned relative to the render day.
type calendarEvent struct {
	InDays int
	Time   string
	Title  string
}

// Calendar renders an upcoming-events agenda. Events come from the
// configuration blob; without any it falls back to a small sample agenda
// so a freshly configured display shows something sensible.
type Calendar struct {
	logger    *zap.Logger
	daysAhead int
	maxEvents int
	events    []calendarEvent
	now       func() time.Time
}

func newCalendar(name string, cfg Config, deps Deps) (Source, error) {
	c := &Calendar{
		logger:    deps.Logger,
		daysAhead: cfg.Int("days_ahead", 7),
		maxEvents: cfg.Int("max_events", 10),
		now:       time.Now,
	}
	for _, ev := range cfg.Maps("events") {
		c.events = append(c.events, calendarEvent{
			InDays: ev.Int("in_days", 0),
			Time:   ev.String("time", ""),
			Title:  ev.String("title", ""),
		})
	}
	if len(c.events) == 0 {
		c.events = []calendarEvent{
			{0, "09:00", "Team Meeting"},
			{0, "14:00", "Doctor Appointment"},
			{1, "10:30", "Project Review"},
			{2, "15:00", "Dentist"},
			{3, "11:00", "Lunch with Sarah"},
			{5, "09:00", "Flight to NYC"},
		}
	}
	return c, nil
}

// ShouldUpdate always regenerates; the agenda carries a timestamp.
func (c *Calendar) ShouldUpdate() bool { return true }

// Generate draws the agenda. Today's events are highlighted in red on
// tri-color displays.
func (c *Calendar) Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error) {
	canvas := render.NewCanvas(width, height)

	titleFace := render.BoldFace(36)
	dateFace := render.BoldFace(24)
	eventFace := render.Face(20)

	now := c.now()
	canvas.Text(20, 50, fmt.Sprintf("Calendar - Next %d Days", c.daysAhead), titleFace, render.Black)
	canvas.HLine(20, width-20, 70, 2, render.Black)

	y := 110
	lastDate := ""
	shown := 0
	for _, ev := range c.events {
		if ev.InDays > c.daysAhead || shown >= c.maxEvents {
			continue
		}
		day := now.AddDate(0, 0, ev.InDays)
		header := day.Format("Monday, January 2")
		if header != lastDate {
			canvas.Text(20, y, header, dateFace, render.Black)
			y += 35
			lastDate = header
		}

		col := render.Black
		if mode == models.TriColor && ev.InDays == 0 {
			col = render.Red
		}
		canvas.Text(40, y, ev.Time, eventFace, col)
		canvas.Text(130, y, ev.Title, eventFace, col)
		y += 30
		shown++

		if y > height-40 {
			break
		}
	}

	canvas.Text(20, height-14, "Updated: "+now.Format("3:04 PM"), eventFace, render.Black)
	return canvas.RGBA, nil
}

// Cleanup has nothing to release.
func (c *Calendar) Cleanup() error { return nil }
