package features

import (
	"context"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
)

// Reaction is one room-level reaction event.
type Reaction struct {
	ClientID string
	Name     string
	Metadata map[string]string
}

// reactionsChannel is the transport surface the reactions facade sends
// through.
type reactionsChannel interface {
	Send(ctx context.Context, reaction Reaction) error
}

// Reactions is the reactions feature facade: send and subscribe, the
// same shape as messages, but with no history to fetch.
type Reactions struct {
	contributor *contributor.Contributor
	channel     reactionsChannel
	inbound     *subscription.Broadcaster[Reaction]
}

// NewReactions builds a Reactions facade.
func NewReactions(c *contributor.Contributor, channel reactionsChannel) *Reactions {
	return &Reactions{
		contributor: c,
		channel:     channel,
		inbound:     subscription.New[Reaction](),
	}
}

func (f *Reactions) Send(ctx context.Context, reaction Reaction) error {
	return f.channel.Send(ctx, reaction)
}

// Deliver is called by the transport binding when a reaction arrives; it
// fans the event out to Subscribe callers.
func (f *Reactions) Deliver(reaction Reaction) {
	f.inbound.Emit(reaction)
}

func (f *Reactions) Subscribe(policy subscription.BufferPolicy) *subscription.Handle[Reaction] {
	return f.inbound.Subscribe(policy)
}

func (f *Reactions) SubscribeToDiscontinuities(policy subscription.BufferPolicy) *subscription.Handle[contributor.Discontinuity] {
	return f.contributor.SubscribeToDiscontinuities(policy)
}
