package room

import (
	"context"
	"fmt"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
	"github.com/chatcore/roomkit/roomerr"
)

// Attach runs the user-facing Attach operation, per spec.md §4.3.
func (m *Manager) Attach(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch st := m.status.(type) {
		case statusAttached:
			m.mu.Unlock()
			return nil
		case statusReleasing:
			m.mu.Unlock()
			return roomerr.RoomIsReleasing()
		case statusReleased:
			m.mu.Unlock()
			return roomerr.RoomIsReleased()
		case statusFailed, statusFailedAwaitingStartOfRundown:
			m.mu.Unlock()
			return roomerr.RoomInFailedState()
		case statusSuspendedAwaitingStartOfRetry:
			// operationID() is "" during this brief scheduling window;
			// wait on the scheduled task itself rather than racing it
			// with a second attach cycle.
			m.mu.Unlock()
			select {
			case <-st.Task.done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if opID := m.status.operationID(); opID != "" {
			ch := m.registerContinuationLocked(opID)
			m.mu.Unlock()
			select {
			case <-ch:
				continue // re-check status after the in-progress op completes
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		break
	}

	opID := newOperationID()
	m.mu.Lock()
	m.transitionLocked(statusAttaching{OpID: opID, Trigger: TriggerAttachOp})
	m.mu.Unlock()

	err := m.runAttachmentCycle(ctx, opID, TriggerAttachOp, nil)
	m.completeOperation(opID, OpResult{Err: err})
	return err
}

// runAttachmentCycle implements spec.md §4.3.1. opID is the id of the
// operation this cycle belongs to (the user Attach, or a Retry).
func (m *Manager) runAttachmentCycle(ctx context.Context, opID string, trigger AttachTrigger, triggerCause error) error {
	for _, c := range m.contributors {
		err := c.Adapter.Attach(ctx)
		if err == nil {
			continue
		}

		state := c.Adapter.State()
		switch state {
		case realtime.ChannelStateSuspended:
			cause := roomerr.AttachmentFailed(string(c.Feature), err)
			m.startRetry(ctx, c, cause)
			return cause
		case realtime.ChannelStateFailed:
			cause := roomerr.AttachmentFailed(string(c.Feature), err)
			m.startRundown(ctx, cause)
			return cause
		default:
			// Contract violation per spec.md §4.3.1: the manager treats
			// this as a recoverable bug rather than silently continuing.
			cause := roomerr.AttachmentFailed(string(c.Feature), fmt.Errorf(
				"contributor %s left unexpected state %s after attach failure: %w", c, state, err))
			m.logger.Error("attach contract violation", "contributor", c.String(), "state", state.String(), "error", err)
			return cause
		}
	}

	// All contributors attached.
	m.mu.Lock()
	m.clearAllTransientTimersLocked()
	m.transitionLocked(statusAttached{})
	pending := m.drainPendingDiscontinuitiesLocked()
	m.mu.Unlock()

	for _, p := range pending {
		p.contributor.EmitDiscontinuity(p.event)
		m.events.EmitDiscontinuity(ctx, m.roomID, string(p.contributor.Feature), p.event.Error)
	}

	return nil
}

type pendingEmission struct {
	contributor *contributor.Contributor
	event       contributor.Discontinuity
}

// drainPendingDiscontinuitiesLocked clears every contributor's pending
// discontinuity and returns them for emission outside the lock. The
// caller must hold m.mu.
func (m *Manager) drainPendingDiscontinuitiesLocked() []pendingEmission {
	var out []pendingEmission
	for _, c := range m.contributors {
		ann := m.annotationFor(c)
		if ann.pendingDiscontinuity != nil {
			out = append(out, pendingEmission{contributor: c, event: *ann.pendingDiscontinuity})
			ann.pendingDiscontinuity = nil
		}
	}
	return out
}

// clearAllTransientTimersLocked cancels every running transient-disconnect
// timer. The caller must hold m.mu.
func (m *Manager) clearAllTransientTimersLocked() {
	for _, ann := range m.annotations {
		m.clearTransientTimerLocked(ann)
	}
}

func (m *Manager) clearTransientTimerLocked(ann *annotation) {
	if ann.transientTimer == nil {
		return
	}
	ann.transientTimer.cancelled = true
	ann.transientTimer.timer.Stop()
	ann.transientTimer = nil
}
