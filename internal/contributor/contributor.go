// Package contributor implements the contributor adapter (spec.md §4.2)
// and the Contributor value the lifecycle manager coordinates. It sits
// directly on top of the subscription primitive and directly below the
// lifecycle manager in the dependency order spec.md §2 lays out.
package contributor

import (
	"context"

	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/realtime"
	"github.com/google/uuid"
)

// Feature identifies which chat feature a contributor backs.
type Feature string

const (
	FeatureMessages  Feature = "messages"
	FeaturePresence  Feature = "presence"
	FeatureTyping    Feature = "typing"
	FeatureReactions Feature = "reactions"
	FeatureOccupancy Feature = "occupancy"
)

// Discontinuity is the event delivered to a contributor's discontinuity
// subscribers, per spec.md §6.
type Discontinuity struct {
	Error error
}

// Adapter wraps one realtime channel and exposes the narrow surface the
// manager needs: attach/detach with their causes, read-only state
// snapshots, and a lazy state-change stream. It does not interpret
// events; it forwards them, per spec.md §4.2.
type Adapter struct {
	channel realtime.Channel
}

// NewAdapter wraps channel in an Adapter.
func NewAdapter(channel realtime.Channel) *Adapter {
	return &Adapter{channel: channel}
}

func (a *Adapter) Attach(ctx context.Context) error { return a.channel.Attach(ctx) }
func (a *Adapter) Detach(ctx context.Context) error { return a.channel.Detach(ctx) }

func (a *Adapter) State() realtime.ChannelState { return a.channel.State() }
func (a *Adapter) ErrorReason() error           { return a.channel.ErrorReason() }

// SubscribeToState returns a lazy sequence of state-change records. The
// returned cancel function releases the underlying transport
// subscription; it is safe to call more than once.
func (a *Adapter) SubscribeToState() (<-chan realtime.StateChange, func()) {
	return a.channel.Subscribe()
}

// Contributor is one feature's participation in the room lifecycle.
// Contributors are fixed at manager construction time (spec.md §3) and
// are shared by reference with feature facades; only the manager mutates
// the per-contributor annotation tracked alongside it.
type Contributor struct {
	// ID is a stable identifier, unique within one manager instance.
	ID      string
	Feature Feature
	Adapter *Adapter

	discontinuity *subscription.Broadcaster[Discontinuity]
}

// New constructs a Contributor for the given feature, wrapping channel.
func New(feature Feature, channel realtime.Channel) *Contributor {
	return &Contributor{
		ID:            uuid.New().String(),
		Feature:       feature,
		Adapter:       NewAdapter(channel),
		discontinuity: subscription.New[Discontinuity](),
	}
}

// EmitDiscontinuity broadcasts a discontinuity event to this
// contributor's subscribers. Only the manager calls this; feature
// facades only ever subscribe.
func (c *Contributor) EmitDiscontinuity(d Discontinuity) {
	c.discontinuity.Emit(d)
}

// SubscribeToDiscontinuities returns the per-contributor discontinuity
// stream described in spec.md §6.
func (c *Contributor) SubscribeToDiscontinuities(policy subscription.BufferPolicy) *subscription.Handle[Discontinuity] {
	return c.discontinuity.Subscribe(policy)
}

// String renders the contributor for logging.
func (c *Contributor) String() string {
	return string(c.Feature) + ":" + c.ID
}
