package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_DeliversInEmissionOrder(t *testing.T) {
	b := New[int]()
	h := b.Subscribe(Unbounded())

	for i := 0; i < 5; i++ {
		b.Emit(i)
	}

	for i := 0; i < 5; i++ {
		select {
		case v := <-h.C:
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBroadcaster_UnsubscribeIsIdempotentAndStopsDelivery(t *testing.T) {
	b := New[string]()
	h := b.Subscribe(Unbounded())

	h.Unsubscribe()
	h.Unsubscribe() // must not panic

	b.Emit("after-unsubscribe")

	select {
	case v, ok := <-h.C:
		t.Fatalf("expected no delivery after unsubscribe, got %v (ok=%v)", v, ok)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_BoundedDropsOldest(t *testing.T) {
	b := New[int]()
	h := b.Subscribe(Bounded(2))

	// Emit three events before anything is consumed; only the newest two
	// should survive.
	b.Emit(1)
	b.Emit(2)
	b.Emit(3)

	var got []int
	for i := 0; i < 2; i++ {
		select {
		case v := <-h.C:
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for bounded delivery")
		}
	}
	require.Equal(t, []int{2, 3}, got)
}

func TestBroadcaster_MultipleSubscribersEachSeeAllEvents(t *testing.T) {
	b := New[int]()
	h1 := b.Subscribe(Unbounded())
	h2 := b.Subscribe(Unbounded())

	b.Emit(42)

	for _, h := range []*Handle[int]{h1, h2} {
		select {
		case v := <-h.C:
			assert.Equal(t, 42, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBroadcaster_SubscriberCount(t *testing.T) {
	b := New[int]()
	assert.Equal(t, 0, b.SubscriberCount())

	h := b.Subscribe(Unbounded())
	assert.Equal(t, 1, b.SubscriberCount())

	h.Unsubscribe()
	// Count only converges to zero once a subsequent Emit reaps stale
	// subscribers, matching the broadcaster's lazy-cleanup design.
	b.Emit(0)
	assert.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}
