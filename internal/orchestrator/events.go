package orchestrator

import (
	"context"

	"go.uber.org/multierr"

	"github.com/paperframe/paperframe/pkg/models"
)

// Fanout broadcasts an event to every configured publisher. All sinks
// get the event even when one fails; the errors are aggregated.
type Fanout []EventPublisher

func (f Fanout) PublishUpdate(ctx context.Context, event models.UpdateEvent) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.PublishUpdate(ctx, event))
	}
	return err
}
