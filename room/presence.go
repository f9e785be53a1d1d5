package room

import (
	"context"

	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/roomerr"
)

// WaitToBeAbleToPerformPresenceOperations is the exported entry point
// feature facades call before touching the transport for a
// presence-dependent operation (spec.md §4.5).
func (m *Manager) WaitToBeAbleToPerformPresenceOperations(ctx context.Context, feature string) error {
	return m.waitToBeAbleToPerformPresenceOperations(ctx, feature)
}

// waitToBeAbleToPerformPresenceOperations implements the presence-
// readiness gate from spec.md §4.5: presence-dependent features call
// this before touching the transport, so they observe the
// attaching→attached boundary instead of racing it.
func (m *Manager) waitToBeAbleToPerformPresenceOperations(ctx context.Context, feature string) error {
	m.mu.Lock()
	current := m.status.public()
	if current.Kind == RoomStatusAttached {
		m.mu.Unlock()
		return nil
	}
	if current.Kind != RoomStatusAttaching {
		m.mu.Unlock()
		return roomerr.PresenceOperationRequiresRoomAttach(feature)
	}

	handle := m.statusBroadcaster.Subscribe(subscription.Bounded(1))
	m.mu.Unlock()
	defer handle.Unsubscribe()

	select {
	case change, ok := <-handle.C:
		if !ok {
			return roomerr.PresenceOperationRequiresRoomAttach(feature)
		}
		if change.Current.Kind == RoomStatusAttached {
			return nil
		}
		return roomerr.RoomTransitionedToInvalidStateForPresenceOperation(change.Current.Cause)
	case <-m.closed:
		return roomerr.PresenceOperationRequiresRoomAttach(feature)
	case <-ctx.Done():
		return ctx.Err()
	}
}
