// Package source defines the content-generation contract and the
// compile-time registry of source types. Configuration selects a source by
// type tag; there is no loading of arbitrary code paths.
package source

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/paperframe/paperframe/pkg/models"
)

// Source is the contract every content source implements.
type Source interface {
	// ShouldUpdate is queried before generation. Returning false skips the
	// whole update cycle for this tick without counting as a failure.
	ShouldUpdate() bool

	// Generate produces a full-resolution RGB image for the target
	// display. Sources may use red deliberately only when mode is
	// TriColor and gray shades only when mode is Grayscale4.
	Generate(ctx context.Context, width, height int, mode models.ColorMode) (image.Image, error)

	// Cleanup releases resources. Called at shutdown; failures are logged
	// by the caller and never propagated.
	Cleanup() error
}

// GenerationError marks a content source failure so the orchestrator can
// classify it separately from encoding and delivery faults.
type GenerationError struct {
	Source string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StatusProvider exposes fleet observability to meta sources such as the
// dashboard. Implementations must be safe for use concurrently with the
// scheduling loop; the read path never mutates update history.
type StatusProvider interface {
	History() map[string]models.UpdateRecord
	PollAll(ctx context.Context, timeout time.Duration) map[string]models.StatusReport
}

// Deps carries shared collaborators handed to factories.
type Deps struct {
	Logger *zap.Logger
	Status StatusProvider
}

// Factory builds a source instance from its configuration blob.
type Factory func(name string, cfg Config, deps Deps) (Source, error)

var registry = map[string]Factory{}

// Register adds a source type to the registry. Called from init functions;
// duplicate tags are a programming error.
func Register(tag string, f Factory) {
	if _, dup := registry[tag]; dup {
		panic(fmt.Sprintf("source: duplicate type tag %q", tag))
	}
	registry[tag] = f
}

// New instantiates a source by its type tag.
func New(tag, name string, cfg Config, deps Deps) (Source, error) {
	f, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("source: unknown type %q (known: %v)", tag, Tags())
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	src, err := f(name, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("source %s (%s): %w", name, tag, err)
	}
	return src, nil
}

// Tags lists the registered source types, sorted.
func Tags() []string {
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
