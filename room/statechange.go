package room

import (
	"context"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
)

// watchContributor consumes one contributor's transport state-change
// stream for the lifetime of the manager, per spec.md §4.4.
func (m *Manager) watchContributor(c *contributor.Contributor, ch <-chan realtime.StateChange) {
	for {
		select {
		case sc, ok := <-ch:
			if !ok {
				return
			}
			m.handleContributorStateChange(c, sc)
		case <-m.closed:
			return
		}
	}
}

func (m *Manager) handleContributorStateChange(c *contributor.Contributor, sc realtime.StateChange) {
	switch sc.Event {
	case realtime.EventAttached:
		m.onContributorAttached(c, sc)
	case realtime.EventUpdate:
		m.onContributorUpdate(c, sc)
	case realtime.EventFailed:
		m.onContributorFailed(c, sc)
	case realtime.EventSuspended:
		m.onContributorSuspended(c, sc)
	case realtime.EventAttaching:
		m.onContributorAttaching(c, sc)
	}
}

// onContributorAttached tracks whether this is the first successful
// attach for the contributor, and records a discontinuity when a
// previously-attached contributor comes back without a resumed session
// (spec.md §4.4, §6). A running transient-disconnect timer for the
// contributor is cancelled, since it has recovered.
func (m *Manager) onContributorAttached(c *contributor.Contributor, sc realtime.StateChange) {
	m.mu.Lock()
	ann := m.annotationFor(c)
	discontinuous := ann.hasBeenAttached && !sc.Resumed
	ann.hasBeenAttached = true
	m.clearTransientTimerLocked(ann)
	m.mu.Unlock()

	if discontinuous {
		m.recordOrEmitDiscontinuity(c, ann, sc.Reason)
	}
}

// onContributorUpdate handles mid-session update events, which carry the
// same resumed flag as attached events and can likewise signal a
// discontinuity without any change in transport state.
func (m *Manager) onContributorUpdate(c *contributor.Contributor, sc realtime.StateChange) {
	m.mu.Lock()
	ann := m.annotationFor(c)
	discontinuous := ann.hasBeenAttached && !sc.Resumed
	m.mu.Unlock()

	if discontinuous {
		m.recordOrEmitDiscontinuity(c, ann, sc.Reason)
	}
}

// recordOrEmitDiscontinuity emits immediately if the room is settled in
// attached with no operation touching it, otherwise defers to the
// pending-discontinuity slot that the next successful attach cycle
// drains (spec.md §4.3.1, §6): first write wins, so an already-pending
// discontinuity for this contributor is left untouched.
func (m *Manager) recordOrEmitDiscontinuity(c *contributor.Contributor, ann *annotation, cause error) {
	m.mu.Lock()
	_, attached := m.status.(statusAttached)
	opInProgress := m.status.operationID() != ""
	if attached && !opInProgress {
		m.mu.Unlock()
		d := contributor.Discontinuity{Error: cause}
		c.EmitDiscontinuity(d)
		m.events.EmitDiscontinuity(context.Background(), m.roomID, string(c.Feature), cause)
		return
	}
	if ann.pendingDiscontinuity == nil {
		ann.pendingDiscontinuity = &contributor.Discontinuity{Error: cause}
	}
	m.mu.Unlock()
}

// onContributorFailed handles a contributor failing outside of any
// operation the manager already knows about: the room itself moves to
// failed, and every contributor, including the failed one, is detached
// on a best-effort basis (spec.md §4.4).
func (m *Manager) onContributorFailed(c *contributor.Contributor, sc realtime.StateChange) {
	m.mu.Lock()
	if m.status.operationID() != "" {
		m.mu.Unlock()
		return
	}
	ann := m.annotationFor(c)
	m.clearTransientTimerLocked(ann)
	cause := sc.Reason
	if cause == nil {
		cause = wrapUnexpectedState("contributor failed with no reason")
	}
	m.transitionLocked(statusFailed{Cause: cause})
	m.mu.Unlock()

	go m.detachAllBestEffort(context.Background())
}

// onContributorSuspended hands off to the Retry operation when a
// contributor suspends with no operation already in progress.
func (m *Manager) onContributorSuspended(c *contributor.Contributor, sc realtime.StateChange) {
	m.mu.Lock()
	if m.status.operationID() != "" {
		m.mu.Unlock()
		return
	}
	ann := m.annotationFor(c)
	m.clearTransientTimerLocked(ann)
	m.mu.Unlock()

	cause := sc.Reason
	if cause == nil {
		cause = wrapUnexpectedState("contributor suspended with no reason")
	}
	m.startRetry(context.Background(), c, cause)
}

// onContributorAttaching starts the transient-disconnect grace timer
// (spec.md §9) the first time a contributor re-enters attaching outside
// of any operation the manager already knows about. A unique id is
// stamped on the timer so a timer cancelled by a later event can never
// be confused with one recorded after it.
func (m *Manager) onContributorAttaching(c *contributor.Contributor, sc realtime.StateChange) {
	m.mu.Lock()
	if m.status.operationID() != "" {
		m.mu.Unlock()
		return
	}
	ann := m.annotationFor(c)
	if ann.transientTimer != nil {
		m.mu.Unlock()
		return
	}

	timerID := newOperationID()
	pending := &transientDisconnectTimeout{id: timerID}
	ann.transientTimer = pending
	cause := sc.Reason
	m.mu.Unlock()

	pending.timer = time.AfterFunc(m.cfg.TransientDisconnectTimeout, func() {
		m.onTransientDisconnectTimeout(c, timerID, cause)
	})
}

// onTransientDisconnectTimeout fires when a contributor has remained in
// attaching for longer than the transient-disconnect grace period. It is
// a no-op if the timer was cancelled (the contributor recovered) or
// superseded by a later timer.
func (m *Manager) onTransientDisconnectTimeout(c *contributor.Contributor, timerID string, cause error) {
	m.mu.Lock()
	ann := m.annotationFor(c)
	if ann.transientTimer == nil || ann.transientTimer.id != timerID || ann.transientTimer.cancelled {
		m.mu.Unlock()
		return
	}
	ann.transientTimer = nil

	if m.status.operationID() != "" {
		m.mu.Unlock()
		return
	}

	if cause == nil {
		cause = wrapUnexpectedState("contributor remained attaching past the transient disconnect timeout")
	}
	opID := newOperationID()
	m.transitionLocked(statusAttaching{OpID: opID, Trigger: TriggerContributorStateChange, Cause: cause})
	m.mu.Unlock()

	go func() {
		err := m.runAttachmentCycle(context.Background(), opID, TriggerContributorStateChange, cause)
		m.completeOperation(opID, OpResult{Err: err})
	}()
}
