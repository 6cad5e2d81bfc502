package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/paperframe/paperframe/pkg/models"
)

// Displays returns a sorted snapshot of the configured displays. The
// copies are taken under the same lock the scheduler holds when it bumps
// LastUpdate, so handlers can call this at any time.
func (o *Orchestrator) Displays() []models.Display {
	out := make([]models.Display, 0, len(o.displays))
	o.mu.Lock()
	for _, d := range o.displays {
		out = append(out, *d)
	}
	o.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns the update record for every display.
func (o *Orchestrator) History() map[string]models.UpdateRecord {
	return o.history.SnapshotAll()
}

// HistoryFor returns one display's update record.
func (o *Orchestrator) HistoryFor(name string) (models.UpdateRecord, bool) {
	return o.history.Snapshot(name)
}

// PollAll queries each configured display for its live status. Displays
// are polled one at a time; an unreachable panel costs at most timeout.
func (o *Orchestrator) PollAll(ctx context.Context, timeout time.Duration) map[string]models.StatusReport {
	out := make(map[string]models.StatusReport, len(o.displays))
	for name, d := range o.displays {
		out[name] = o.poller.Poll(ctx, d, timeout)
	}
	return out
}

// Poll queries a single display by name.
func (o *Orchestrator) Poll(ctx context.Context, name string, timeout time.Duration) (models.StatusReport, bool) {
	d, ok := o.displays[name]
	if !ok {
		return models.StatusReport{}, false
	}
	return o.poller.Poll(ctx, d, timeout), true
}
