package room

import (
	"context"

	"github.com/chatcore/roomkit/realtime"
)

// Release runs the user-facing Release operation, per spec.md §4.3.3.
// Unlike Attach and Detach, Release never fails: a room is always
// releasable, even from a failed or mid-retry state.
func (m *Manager) Release(ctx context.Context) error {
	for {
		m.mu.Lock()
		switch st := m.status.(type) {
		case statusReleased:
			m.mu.Unlock()
			return nil
		case statusInitialized, statusDetached, statusDetachedDueToRetryOp:
			m.clearAllTransientTimersLocked()
			m.transitionLocked(statusReleased{})
			m.mu.Unlock()
			return nil
		case statusSuspendedAwaitingStartOfRetry:
			// operationID() is "" during this brief scheduling window;
			// wait on the scheduled task itself rather than racing it
			// with a release cycle.
			m.mu.Unlock()
			select {
			case <-st.Task.done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		case statusFailedAwaitingStartOfRundown:
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
	m.transitionLocked(statusReleasing{OpID: opID})
	m.mu.Unlock()

	m.runReleaseCycle(ctx)

	m.mu.Lock()
	m.transitionLocked(statusReleased{})
	m.mu.Unlock()

	m.completeOperation(opID, OpResult{Err: nil})
	return nil
}

// runReleaseCycle detaches every contributor that has not itself failed,
// skipping failed ones since there is nothing left to release there, per
// spec.md §4.3.3.
func (m *Manager) runReleaseCycle(ctx context.Context) {
	for _, c := range m.contributors {
		if c.Adapter.State() == realtime.ChannelStateFailed {
			continue
		}
		m.detachOneWithUnboundedRetry(ctx, c)
	}
}
