package room

import (
	"context"
	"testing"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
	"github.com/chatcore/roomkit/realtime/faketransport"
	"github.com/chatcore/roomkit/roomconfig"
	"github.com/chatcore/roomkit/roomerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() roomconfig.Config {
	cfg := roomconfig.Default()
	cfg.TransientDisconnectTimeout = 50 * time.Millisecond
	cfg.DetachRetryInterval = 5 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, n int) (*Manager, []*faketransport.Channel) {
	t.Helper()

	channels := make([]*faketransport.Channel, 0, n)
	contributors := make([]*contributor.Contributor, 0, n)
	features := []contributor.Feature{
		contributor.FeatureMessages,
		contributor.FeaturePresence,
		contributor.FeatureTyping,
		contributor.FeatureReactions,
		contributor.FeatureOccupancy,
	}
	for i := 0; i < n; i++ {
		ch := faketransport.New()
		channels = append(channels, ch)
		contributors = append(contributors, contributor.New(features[i%len(features)], ch))
	}

	m := New(t.Name(), contributors, testConfig(), nil)
	t.Cleanup(m.Close)
	return m, channels
}

func TestAttachSucceedsWhenEveryContributorAttaches(t *testing.T) {
	m, _ := newTestManager(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))
	assert.Equal(t, RoomStatusAttached, m.RoomStatus().Kind)
}

func TestAttachIsIdempotentWhenAlreadyAttached(t *testing.T) {
	m, _ := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))
	require.NoError(t, m.Attach(ctx))
	assert.Equal(t, RoomStatusAttached, m.RoomStatus().Kind)
}

func TestAttachFailsAfterRelease(t *testing.T) {
	m, _ := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Release(ctx))
	err := m.Attach(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, roomerr.ErrRoomIsReleased)
}

func TestDetachIsIdempotentWhenAlreadyDetached(t *testing.T) {
	m, _ := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Detach(ctx))
	require.NoError(t, m.Detach(ctx))
	assert.Equal(t, RoomStatusDetached, m.RoomStatus().Kind)
}

func TestReleaseFromInitializedIsImmediate(t *testing.T) {
	m, _ := newTestManager(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Release(ctx))
	assert.Equal(t, RoomStatusReleased, m.RoomStatus().Kind)
}

func TestReleaseAfterAttachDetachesThenReleases(t *testing.T) {
	m, _ := newTestManager(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Attach(ctx))
	require.NoError(t, m.Release(ctx))
	assert.Equal(t, RoomStatusReleased, m.RoomStatus().Kind)
}

func TestAttachFailurePutsRoomIntoFailed(t *testing.T) {
	m, channels := newTestManager(t, 2)
	channels[1].SetAttachResult(realtime.ChannelStateFailed, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := m.Attach(ctx)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusFailed
	}, time.Second, 5*time.Millisecond)
}

func TestAttachSuspensionSchedulesRetryAndEventuallyAttaches(t *testing.T) {
	m, channels := newTestManager(t, 2)
	channels[1].SetAttachResult(realtime.ChannelStateSuspended, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := m.Attach(ctx)
	require.Error(t, err)
	assert.Equal(t, RoomStatusSuspended, m.RoomStatus().Kind)

	// Simulate the transport recovering the suspended contributor on its
	// own, and clear the scripted failure so the Retry operation's
	// re-attach succeeds.
	channels[1].SetAttachResult(realtime.ChannelStateAttached, nil)
	channels[1].Push(realtime.StateChange{Current: realtime.ChannelStateAttached, Event: realtime.EventAttached, Resumed: true})

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusAttached
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReleaseDuringRetryWaitsForRetryToFinish(t *testing.T) {
	m, channels := newTestManager(t, 2)
	channels[1].SetAttachResult(realtime.ChannelStateSuspended, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := m.Attach(ctx)
	require.Error(t, err)
	assert.Equal(t, RoomStatusSuspended, m.RoomStatus().Kind)

	channels[1].SetAttachResult(realtime.ChannelStateAttached, nil)
	channels[1].Push(realtime.StateChange{Current: realtime.ChannelStateAttached, Event: realtime.EventAttached, Resumed: true})

	require.NoError(t, m.Release(ctx))
	assert.Equal(t, RoomStatusReleased, m.RoomStatus().Kind)
}

func TestAttachFailureThenRundownEndsInFailed(t *testing.T) {
	m, channels := newTestManager(t, 2)
	channels[1].SetAttachResult(realtime.ChannelStateFailed, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := m.Attach(ctx)
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusFailed
	}, time.Second, 5*time.Millisecond)

	// Release from a failed room must still succeed and never re-detach
	// the already-failed contributor.
	require.NoError(t, m.Release(ctx))
	assert.Equal(t, RoomStatusReleased, m.RoomStatus().Kind)
}

func TestDetachFromFailedReturnsError(t *testing.T) {
	m, channels := newTestManager(t, 1)
	channels[0].SetAttachResult(realtime.ChannelStateFailed, assert.AnError)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, m.Attach(ctx))
	require.Eventually(t, func() bool {
		return m.RoomStatus().Kind == RoomStatusFailed
	}, time.Second, 5*time.Millisecond)

	err := m.Detach(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, roomerr.ErrRoomInFailedState)
}
