package features

import (
	"context"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/room"
)

// PresenceMember is one entry returned by Presence.Get.
type PresenceMember struct {
	ClientID string
	Data     any
}

// Presence is the presence feature facade. Every mutating and
// list-reading operation first waits on the presence-readiness gate
// (spec.md §4.5), since presence data is only meaningful once the room
// has actually attached.
type Presence struct {
	manager     *room.Manager
	contributor *contributor.Contributor
	channel     presenceChannel
}

// presenceChannel is the narrow transport surface Presence needs,
// distinct from realtime.Channel because presence enter/update/leave/get
// are channel-level RPCs, not attach/detach lifecycle calls.
type presenceChannel interface {
	Enter(ctx context.Context, data any) error
	Update(ctx context.Context, data any) error
	Leave(ctx context.Context) error
	Get(ctx context.Context) ([]PresenceMember, error)
}

// NewPresence builds a Presence facade. channel is the presence-specific
// transport binding for the contributor's channel.
func NewPresence(m *room.Manager, c *contributor.Contributor, channel presenceChannel) *Presence {
	return &Presence{manager: m, contributor: c, channel: channel}
}

func (f *Presence) Enter(ctx context.Context, data any) error {
	if err := f.manager.WaitToBeAbleToPerformPresenceOperations(ctx, string(contributor.FeaturePresence)); err != nil {
		return err
	}
	return f.channel.Enter(ctx, data)
}

func (f *Presence) Update(ctx context.Context, data any) error {
	if err := f.manager.WaitToBeAbleToPerformPresenceOperations(ctx, string(contributor.FeaturePresence)); err != nil {
		return err
	}
	return f.channel.Update(ctx, data)
}

func (f *Presence) Leave(ctx context.Context) error {
	if err := f.manager.WaitToBeAbleToPerformPresenceOperations(ctx, string(contributor.FeaturePresence)); err != nil {
		return err
	}
	return f.channel.Leave(ctx)
}

func (f *Presence) Get(ctx context.Context) ([]PresenceMember, error) {
	if err := f.manager.WaitToBeAbleToPerformPresenceOperations(ctx, string(contributor.FeaturePresence)); err != nil {
		return nil, err
	}
	return f.channel.Get(ctx)
}

// SubscribeToDiscontinuities exposes the contributor's discontinuity
// stream so presence state caches know when to re-sync via Get.
func (f *Presence) SubscribeToDiscontinuities(policy subscription.BufferPolicy) *subscription.Handle[contributor.Discontinuity] {
	return f.contributor.SubscribeToDiscontinuities(policy)
}
