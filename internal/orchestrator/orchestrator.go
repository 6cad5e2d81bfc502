// Package orchestrator owns the display, source and schedule registries
// and drives the update pipeline: tick, find due jobs, generate, encode,
// send, record. Jobs run strictly one at a time so a slow or failing
// display never needs per-display locking and worst-case latency stays
// bounded by jobs x per-device timeout.
package orchestrator

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/internal/codec"
	"github.com/paperframe/paperframe/internal/history"
	"github.com/paperframe/paperframe/internal/schedule"
	"github.com/paperframe/paperframe/internal/source"
	"github.com/paperframe/paperframe/internal/transport"
	"github.com/paperframe/paperframe/pkg/models"
)

// DefaultTick is the scheduler polling interval. The loop itself never
// blocks on a job's timer; it checks all jobs for dueness each tick.
const DefaultTick = time.Second

// EventPublisher receives a record of every delivery attempt. Optional.
type EventPublisher interface {
	PublishUpdate(ctx context.Context, event models.UpdateEvent) error
}

// Options configures an Orchestrator. Zero values get sensible defaults.
type Options struct {
	Client    *transport.Client
	Poller    *transport.Poller
	History   *history.Store
	Events    EventPublisher
	OutputDir string
	Tick      time.Duration
}

type job struct {
	display    *models.Display
	sourceName string
	rule       schedule.Rule
	next       time.Time
}

// Orchestrator is the scheduler and dispatcher. Its registries are
// immutable once Run starts; LastUpdate is the one display field the
// scheduler mutates and mu guards it against concurrent snapshots.
type Orchestrator struct {
	logger    *zap.Logger
	mu        sync.Mutex
	displays  map[string]*models.Display
	sources   map[string]source.Source
	jobs      []*job
	history   *history.Store
	client    *transport.Client
	poller    *transport.Poller
	events    EventPublisher
	outputDir string
	tick      time.Duration
	trigger   chan models.RefreshRequest
	now       func() time.Time
}

// New creates an orchestrator over the given displays.
func New(logger *zap.Logger, displays []*models.Display, opts Options) *Orchestrator {
	if opts.Client == nil {
		opts.Client = transport.NewClient(transport.DefaultTimeout, logger)
	}
	if opts.Poller == nil {
		opts.Poller = transport.NewPoller(logger)
	}
	if opts.History == nil {
		opts.History = history.NewStore()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}

	o := &Orchestrator{
		logger:    logger,
		displays:  make(map[string]*models.Display, len(displays)),
		sources:   make(map[string]source.Source),
		history:   opts.History,
		client:    opts.Client,
		poller:    opts.Poller,
		events:    opts.Events,
		outputDir: opts.OutputDir,
		tick:      opts.Tick,
		trigger:   make(chan models.RefreshRequest, 16),
		now:       time.Now,
	}
	for _, d := range displays {
		o.displays[d.Name] = d
		o.history.Register(d.Name)
		logger.Info("Registered display",
			zap.String("display", d.Name),
			zap.String("addr", d.Addr()),
			zap.String("resolution", d.Resolution()),
			zap.String("mode", d.Mode.String()))
	}
	return o
}

// AddSource registers a content source instance under its name.
func (o *Orchestrator) AddSource(name string, src source.Source) error {
	if _, dup := o.sources[name]; dup {
		return fmt.Errorf("source %q already registered", name)
	}
	o.sources[name] = src
	return nil
}

// Schedule installs the schedule entries. A reference to an undefined
// display or source, or an unparseable rule, is a configuration error:
// the process must not start.
func (o *Orchestrator) Schedule(entries []models.ScheduleEntry) error {
	now := o.now()
	for _, e := range entries {
		display, ok := o.displays[e.Display]
		if !ok {
			return fmt.Errorf("schedule references undefined display %q", e.Display)
		}
		if _, ok := o.sources[e.Source]; !ok {
			return fmt.Errorf("schedule references undefined source %q", e.Source)
		}
		rule, err := schedule.Parse(e.Rule)
		if err != nil {
			return err
		}
		o.jobs = append(o.jobs, &job{
			display:    display,
			sourceName: e.Source,
			rule:       rule,
			next:       rule.Next(now),
		})
		o.logger.Info("Scheduled update",
			zap.String("display", e.Display),
			zap.String("source", e.Source),
			zap.String("rule", e.Rule))
	}
	return nil
}

// Run drives the scheduling loop until the context is cancelled, then
// shuts down. All jobs run once immediately so freshly started panels do
// not stay blank until their first interval elapses.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("Orchestrator running",
		zap.Int("displays", len(o.displays)),
		zap.Int("sources", len(o.sources)),
		zap.Int("jobs", len(o.jobs)))

	o.RunAll(ctx)

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.Shutdown()
			return
		case <-ticker.C:
			o.runDue(ctx)
		case req := <-o.trigger:
			o.runTriggered(ctx, req)
		}
	}
}

// Trigger queues an immediate run of the jobs matching the request. The
// jobs execute on the scheduling goroutine, keeping execution sequential.
// Returns an error when the request matches nothing or the queue is full.
func (o *Orchestrator) Trigger(req models.RefreshRequest) error {
	matched := false
	for _, j := range o.jobs {
		if j.display.Name == req.Display && (req.Source == "" || j.sourceName == req.Source) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("no job scheduled for display %q source %q", req.Display, req.Source)
	}
	select {
	case o.trigger <- req:
		return nil
	default:
		return fmt.Errorf("trigger queue full")
	}
}

// runTriggered executes the jobs matching a refresh request immediately
// and reschedules them.
func (o *Orchestrator) runTriggered(ctx context.Context, req models.RefreshRequest) {
	o.logger.Info("Running triggered refresh",
		zap.String("display", req.Display),
		zap.String("source", req.Source))
	for _, j := range o.jobs {
		if ctx.Err() != nil {
			return
		}
		if j.display.Name != req.Display {
			continue
		}
		if req.Source != "" && j.sourceName != req.Source {
			continue
		}
		o.runJob(ctx, j)
		j.next = j.rule.Next(o.now())
	}
}

// RunAll executes every job once, sequentially, and reschedules them.
func (o *Orchestrator) RunAll(ctx context.Context) {
	for _, j := range o.jobs {
		if ctx.Err() != nil {
			return
		}
		o.runJob(ctx, j)
		j.next = j.rule.Next(o.now())
	}
}

// runDue executes all currently due jobs, sequentially.
func (o *Orchestrator) runDue(ctx context.Context) {
	for _, j := range o.jobs {
		if ctx.Err() != nil {
			return
		}
		now := o.now()
		if j.next.After(now) {
			continue
		}
		o.runJob(ctx, j)
		j.next = j.rule.Next(o.now())
	}
}

// runJob walks one job through generate, encode, send and record. Every
// fault is caught here, logged with display context and recorded in
// update history; nothing propagates to the scheduling loop.
func (o *Orchestrator) runJob(ctx context.Context, j *job) {
	display := j.display
	log := o.logger.With(
		zap.String("display", display.Name),
		zap.String("source", j.sourceName))

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("source panic: %v", r)
			log.Error("Job panicked", zap.Any("panic", r))
			o.history.RecordError(display.Name, msg)
		}
	}()

	src := o.sources[j.sourceName]
	if !src.ShouldUpdate() {
		// A no-op cycle: no history mutation, no network call.
		log.Info("Source reports no update needed")
		return
	}

	log.Info("Generating content")
	img, err := src.Generate(ctx, display.Width, display.Height, display.Mode)
	if err != nil {
		genErr := &source.GenerationError{Source: j.sourceName, Err: err}
		log.Error("Content generation failed", zap.Error(genErr))
		o.recordError(ctx, j, genErr.Error())
		return
	}

	payload, err := codec.Encode(img, display.Mode, display.Width, display.Height)
	if err != nil {
		log.Error("Encoding failed", zap.Error(err))
		o.recordError(ctx, j, fmt.Sprintf("encode: %v", err))
		return
	}

	o.writeArtifacts(display.Name, j.sourceName, img, payload, log)

	outcome := o.client.Send(ctx, display, payload)
	if !outcome.OK() {
		log.Error("Delivery failed",
			zap.String("outcome", outcome.Kind.String()),
			zap.String("error", outcome.Message()))
		o.history.RecordError(display.Name, outcome.Message())
		o.publish(ctx, j, models.UpdateEvent{
			Display:   display.Name,
			Source:    j.sourceName,
			Error:     outcome.Message(),
			Bytes:     len(payload),
			Timestamp: o.now(),
		})
		return
	}

	o.mu.Lock()
	display.LastUpdate = o.now()
	o.mu.Unlock()
	o.history.RecordSuccess(display.Name)
	o.publish(ctx, j, models.UpdateEvent{
		Display:   display.Name,
		Source:    j.sourceName,
		Success:   true,
		Bytes:     len(payload),
		LatencyMS: float64(outcome.Latency.Microseconds()) / 1000.0,
		Timestamp: o.now(),
	})
	log.Info("Update successful",
		zap.Int("bytes", len(payload)),
		zap.Duration("latency", outcome.Latency))
}

func (o *Orchestrator) recordError(ctx context.Context, j *job, msg string) {
	o.history.RecordError(j.display.Name, msg)
	o.publish(ctx, j, models.UpdateEvent{
		Display:   j.display.Name,
		Source:    j.sourceName,
		Error:     msg,
		Timestamp: o.now(),
	})
}

// publish forwards the event when a publisher is configured. Publication
// failures are logged and swallowed: observability must not break updates.
func (o *Orchestrator) publish(ctx context.Context, j *job, event models.UpdateEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishUpdate(ctx, event); err != nil {
		o.logger.Warn("Failed to publish update event",
			zap.String("display", j.display.Name),
			zap.Error(err))
	}
}

// writeArtifacts dumps the rendered image and the encoded payload for
// debugging when an output directory is configured. Failures only warn.
func (o *Orchestrator) writeArtifacts(display, src string, img image.Image, payload []byte, log *zap.Logger) {
	if o.outputDir == "" {
		return
	}
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		log.Warn("Failed to create output dir", zap.Error(err))
		return
	}

	base := filepath.Join(o.outputDir, fmt.Sprintf("%s_%s", display, src))
	f, err := os.Create(base + ".png")
	if err == nil {
		if err := png.Encode(f, img); err != nil {
			log.Warn("Failed to write debug image", zap.Error(err))
		}
		f.Close()
	}
	if err := os.WriteFile(base+".bin", payload, 0o644); err != nil {
		log.Warn("Failed to write debug payload", zap.Error(err))
	}
}

// Shutdown gives every content source a chance to release resources.
// Cleanup failures are logged and swallowed by design.
func (o *Orchestrator) Shutdown() {
	o.logger.Info("Cleaning up content sources")
	names := make([]string, 0, len(o.sources))
	for name := range o.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := o.sources[name].Cleanup(); err != nil {
			o.logger.Error("Source cleanup failed",
				zap.String("source", name), zap.Error(err))
		}
	}
	o.logger.Info("Shutdown complete")
}
