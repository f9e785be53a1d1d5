package room

import (
	"context"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
	"github.com/chatcore/roomkit/roomerr"
)

// Detach runs the user-facing Detach operation, per spec.md §4.3.
func (m *Manager) Detach(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch st := m.status.(type) {
		case statusDetached, statusDetachedDueToRetryOp:
			m.mu.Unlock()
			return nil
		case statusReleasing:
			m.mu.Unlock()
			return roomerr.RoomIsReleasing()
		case statusReleased:
			m.mu.Unlock()
			return roomerr.RoomIsReleased()
		case statusFailed, statusFailedAwaitingStartOfRundown, statusFailedAndPerformingRundown:
			m.mu.Unlock()
			return roomerr.RoomInFailedState()
		case statusSuspendedAwaitingStartOfRetry:
			// operationID() is "" during this brief scheduling window;
			// wait on the scheduled task itself rather than racing it
			// with a concurrent detachment cycle.
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
		m.clearAllTransientTimersLocked()
		m.mu.Unlock()
		break
	}

	opID := newOperationID()
	m.mu.Lock()
	m.transitionLocked(statusDetaching{OpID: opID})
	m.mu.Unlock()

	cause := m.runDetachmentCycle(ctx, nil)

	if cause == nil {
		m.mu.Lock()
		m.transitionLocked(statusDetached{})
		m.mu.Unlock()
	}
	// If cause != nil the cycle has already transitioned the room to
	// failed itself, as soon as the first contributor was found failed.

	m.completeOperation(opID, OpResult{Err: cause})
	return cause
}

// runDetachmentCycle implements spec.md §4.3.2. When excludeRetryTrigger
// is non-nil, that contributor is skipped: it is expected to recover on
// its own and is awaited separately by the Retry operation. If a
// contributor is found failed, the room transitions to failed(cause)
// immediately, mid-loop, rather than waiting for the remaining
// contributors to finish detaching, so that status subscribers observe
// the transition as soon as it actually occurs. Remaining contributors
// are still given a chance to detach after that.
func (m *Manager) runDetachmentCycle(ctx context.Context, excludeRetryTrigger *contributor.Contributor) error {
	var firstFailedCause error

	for _, c := range m.contributors {
		if excludeRetryTrigger != nil && c.ID == excludeRetryTrigger.ID {
			continue
		}
		cause := m.detachOneWithUnboundedRetry(ctx, c)
		if cause == nil {
			continue
		}
		if firstFailedCause != nil {
			continue
		}
		firstFailedCause = cause

		m.mu.Lock()
		if _, alreadyFailed := m.status.(statusFailed); !alreadyFailed {
			m.transitionLocked(statusFailed{Cause: cause})
		}
		m.mu.Unlock()
	}

	return firstFailedCause
}

// detachOneWithUnboundedRetry detaches a single contributor, retrying at
// cfg.DetachRetryInterval until it either succeeds or the contributor's
// underlying channel reaches the failed transport state. It returns nil
// on success, the detachment's cause on failure, ctx.Err() if ctx is
// cancelled first, or nil if the manager is closed first.
func (m *Manager) detachOneWithUnboundedRetry(ctx context.Context, c *contributor.Contributor) error {
	for {
		err := c.Adapter.Detach(ctx)
		if err == nil {
			return nil
		}

		if c.Adapter.State() == realtime.ChannelStateFailed {
			return roomerr.DetachmentFailed(string(c.Feature), err)
		}

		// Unbounded retry, per spec.md §4.3.2 and §9: the room cannot
		// reach a clean detached state unless every non-failed
		// contributor has actually detached.
		m.logger.Warn("detach failed, retrying", "contributor", c.String(), "error", err)
		select {
		case <-time.After(m.cfg.DetachRetryInterval):
		case <-m.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// detachAllBestEffort attempts detach() once on every contributor,
// logging and discarding any failure rather than retrying, per
// spec.md §4.4's unsolicited-failure cleanup: the room is already
// settled into failed by the time this runs, so there is no status
// left to keep correct by retrying a contributor that won't detach.
func (m *Manager) detachAllBestEffort(ctx context.Context) {
	for _, c := range m.contributors {
		if err := c.Adapter.Detach(ctx); err != nil {
			m.logger.Warn("best-effort detach failed, ignoring", "contributor", c.String(), "error", err)
		}
	}
}
