package room

import (
	"context"
	"testing"
	"time"

	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnsolicitedFailureMovesRoomToFailedAndDetachesOthers(t *testing.T) {
	m, channels := newTestManager(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))

	channels[1].Push(realtime.StateChange{Current: realtime.ChannelStateFailed, Event: realtime.EventFailed, Reason: assert.AnError})

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusFailed
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return channels[0].State() == realtime.ChannelStateDetached
	}, time.Second, 5*time.Millisecond)
}

func TestUnsolicitedSuspensionStartsRetry(t *testing.T) {
	m, channels := newTestManager(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))

	channels[1].Push(realtime.StateChange{Current: realtime.ChannelStateSuspended, Event: realtime.EventSuspended, Reason: assert.AnError})

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusSuspended
	}, time.Second, 5*time.Millisecond)

	// Simulate the transport recovering the suspended contributor on its
	// own; the Retry operation waits for this before re-attaching.
	channels[1].Push(realtime.StateChange{Current: realtime.ChannelStateAttached, Event: realtime.EventAttached, Resumed: true})

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusAttached
	}, time.Second, 5*time.Millisecond)
}

func TestTransientAttachingRecoversWithoutEscalating(t *testing.T) {
	m, channels := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))

	channels[0].Push(realtime.StateChange{Current: realtime.ChannelStateAttaching, Event: realtime.EventAttaching})
	channels[0].Push(realtime.StateChange{Current: realtime.ChannelStateAttached, Event: realtime.EventAttached, Resumed: true})

	// The room should stay attached throughout: the transient timer
	// (50ms in testConfig) never gets a chance to fire because the
	// contributor recovers first.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, RoomStatusAttached, m.RoomStatus().Kind)
}

func TestTransientAttachingTimeoutEscalatesToAttachingCycle(t *testing.T) {
	m, channels := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))

	channels[0].Push(realtime.StateChange{Current: realtime.ChannelStateAttaching, Event: realtime.EventAttaching, Reason: assert.AnError})

	require.Eventually(t, func() bool {
		st := m.RoomStatus()
		return st.Kind == RoomStatusAttaching || st.Kind == RoomStatusAttached
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusAttached
	}, time.Second, 5*time.Millisecond)
}

func TestDiscontinuityEmittedImmediatelyWhenAttachedAndIdle(t *testing.T) {
	m, channels := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))

	c := m.contributors[0]
	handle := c.SubscribeToDiscontinuities(subscription.Bounded(1))
	defer handle.Unsubscribe()

	channels[0].Push(realtime.StateChange{Current: realtime.ChannelStateAttached, Event: realtime.EventAttached, Resumed: false, Reason: assert.AnError})

	select {
	case d := <-handle.C:
		assert.Equal(t, assert.AnError, d.Error)
	case <-time.After(time.Second):
		t.Fatal("expected a discontinuity to be emitted")
	}
}
