package features

import (
	"context"
	"sync"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/pkg/historyclient"
	"github.com/robfig/cron/v3"
)

// OccupancyMetrics is a snapshot of room occupancy.
type OccupancyMetrics struct {
	Connections int `json:"connections"`
	Presence    int `json:"presenceMembers"`
}

// Occupancy is the occupancy feature facade. Metrics arrive either
// pushed over the contributor's realtime state stream (not modelled
// here; that path belongs to the transport binding) or polled from the
// REST endpoint on a cron schedule, the same "recurring job" shape the
// teacher's modules/scheduler wraps around robfig/cron.
type Occupancy struct {
	contributor *contributor.Contributor
	history     *historyclient.Client
	broadcaster *subscription.Broadcaster[OccupancyMetrics]

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewOccupancy builds an Occupancy facade over a REST client used for
// polling.
func NewOccupancy(c *contributor.Contributor, history *historyclient.Client) *Occupancy {
	return &Occupancy{
		contributor: c,
		history:     history,
		broadcaster: subscription.New[OccupancyMetrics](),
	}
}

// StartPolling begins polling the occupancy endpoint on the given cron
// schedule (e.g. "@every 15s"). It is idempotent: calling it again
// replaces the previous schedule.
func (f *Occupancy) StartPolling(schedule string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cron != nil {
		f.cron.Stop()
	}

	f.cron = cron.New()
	entryID, err := f.cron.AddFunc(schedule, f.poll)
	if err != nil {
		f.cron = nil
		return err
	}
	f.entryID = entryID
	f.cron.Start()
	return nil
}

// StopPolling stops the cron schedule, if one is running.
func (f *Occupancy) StopPolling() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cron != nil {
		f.cron.Stop()
		f.cron = nil
	}
}

func (f *Occupancy) poll() {
	var metrics OccupancyMetrics
	if err := f.history.Get(context.Background(), "/occupancy", nil, &metrics); err != nil {
		return
	}
	f.broadcaster.Emit(metrics)
}

// Subscribe returns a stream of occupancy snapshots, whether pushed or
// polled.
func (f *Occupancy) Subscribe(policy subscription.BufferPolicy) *subscription.Handle[OccupancyMetrics] {
	return f.broadcaster.Subscribe(policy)
}
