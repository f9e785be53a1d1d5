// Package room implements the lifecycle manager at the heart of spec.md:
// the contributor-state-change handler, the ATTACH/DETACH/RELEASE/RETRY/
// RUNDOWN operation scheduler, and the presence-readiness gate. It is the
// top of the dependency order described in spec.md §2, built directly on
// the subscription primitive and the contributor adapter.
//
// Concurrency model (spec.md §5): rather than a single-goroutine actor
// loop, the manager serializes all internal mutations (status,
// per-contributor annotations, subscriber lists, continuation maps)
// behind one mutex, held only across synchronous bookkeeping and always
// released before a suspending call (attach/detach, sleeps, waiting on
// another operation). This is one of the two strategies spec.md §9
// explicitly sanctions.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/internal/subscription"
	"github.com/chatcore/roomkit/roomconfig"
	"github.com/chatcore/roomkit/roomerr"
	"github.com/chatcore/roomkit/roomevents"
	"github.com/chatcore/roomkit/roomlog"
	"github.com/google/uuid"
)

// annotation is the per-contributor bookkeeping the manager owns, keyed
// by contributor id, independent of the immutable contributor slice
// (spec.md §3/§9: no back-pointers from contributors to the manager).
type annotation struct {
	pendingDiscontinuity *contributor.Discontinuity
	transientTimer       *transientDisconnectTimeout
	hasBeenAttached       bool
}

// transientDisconnectTimeout is the 5-second grace timer started when a
// contributor transiently enters `attaching` with no operation in
// progress (spec.md §4.4). It carries a unique id so a cancelled timer
// can never be confused with a later one recorded under the same slot
// (spec.md §9).
type transientDisconnectTimeout struct {
	id        string
	timer     *time.Timer
	cancelled bool
}

// Manager is the room lifecycle manager.
type Manager struct {
	roomID       string
	contributors []*contributor.Contributor
	cfg          roomconfig.Config
	logger       roomlog.Logger
	events       *roomevents.Bridge

	mu            sync.Mutex
	status        managerStatus
	annotations   map[string]*annotation
	continuations map[string][]chan OpResult

	statusBroadcaster *subscription.Broadcaster[RoomStatusChange]

	watchCancels []func()
	closeOnce    sync.Once
	closed       chan struct{}
}

// New constructs a Manager over a fixed set of contributors. Contributors
// are never added or removed after construction (spec.md §3).
func New(roomID string, contributors []*contributor.Contributor, cfg roomconfig.Config, logger roomlog.Logger) *Manager {
	if logger == nil {
		logger = roomlog.NopLogger{}
	}

	m := &Manager{
		roomID:            roomID,
		contributors:      contributors,
		cfg:               cfg,
		logger:            logger,
		events:            roomevents.NewBridge(roomID),
		status:            statusInitialized{},
		annotations:       make(map[string]*annotation, len(contributors)),
		continuations:     make(map[string][]chan OpResult),
		statusBroadcaster: subscription.New[RoomStatusChange](),
		closed:            make(chan struct{}),
	}

	for _, c := range contributors {
		m.annotations[c.ID] = &annotation{}
	}

	for _, c := range contributors {
		ch, cancel := c.Adapter.SubscribeToState()
		m.watchCancels = append(m.watchCancels, cancel)
		go m.watchContributor(c, ch)
	}

	return m
}

// Events exposes the CloudEvents bridge so applications can register
// observers for room-status and discontinuity events, per SPEC_FULL.md
// §3's domain-stack wiring.
func (m *Manager) Events() *roomevents.Bridge { return m.events }

// Close stops the manager's contributor state-change listeners. It must
// be called after Release to avoid leaking goroutines; it does not
// itself release the room.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		for _, cancel := range m.watchCancels {
			cancel()
		}
	})
}

// RoomStatus returns the current public status snapshot.
func (m *Manager) RoomStatus() RoomStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.public()
}

// OnRoomStatusChange subscribes to room-status transitions, per spec.md
// §4.3's onRoomStatusChange(bufferingPolicy).
func (m *Manager) OnRoomStatusChange(policy subscription.BufferPolicy) *subscription.Handle[RoomStatusChange] {
	return m.statusBroadcaster.Subscribe(policy)
}

// transitionLocked moves the manager to newStatus. The caller must hold
// m.mu. It enforces invariant 1 from spec.md §8: a room-status change
// event is only emitted when the public mapping actually differs.
func (m *Manager) transitionLocked(newStatus managerStatus) {
	previous := m.status
	m.status = newStatus

	prevPublic := previous.public()
	newPublic := newStatus.public()

	m.logger.Debug("room status transition",
		"room", m.roomID,
		"from", previous,
		"to", newStatus,
		"publicFrom", prevPublic.String(),
		"publicTo", newPublic.String(),
	)

	if publicStatusEqual(prevPublic, newPublic) {
		return
	}

	change := RoomStatusChange{Current: newPublic, Previous: prevPublic}
	m.statusBroadcaster.Emit(change)

	ctx := context.Background()
	m.events.EmitRoomStatusChanged(ctx, m.roomID, newPublic.Kind.String(), prevPublic.Kind.String(), newPublic.Cause)
}

func publicStatusEqual(a, b RoomStatus) bool {
	if a.Kind != b.Kind {
		return false
	}
	// Two attaching/suspended/failed statuses with different causes are
	// still the "same" public status per invariant 1: the invariant
	// talks about Kind equality under the public mapping, not about the
	// cause payload. Causes are informational on top of the Kind.
	return true
}

func newOperationID() string { return uuid.New().String() }

// annotationFor returns the bookkeeping record for a contributor. The
// caller must hold m.mu.
func (m *Manager) annotationFor(c *contributor.Contributor) *annotation {
	return m.annotations[c.ID]
}

// wrapUnexpectedState builds the synthetic unknownError cause spec.md §9
// calls for when a failed/suspended transition arrives without a reason,
// rather than aborting.
func wrapUnexpectedState(context string) error {
	return roomerr.Unknown(context)
}
