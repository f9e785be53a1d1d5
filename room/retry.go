package room

import (
	"context"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/realtime"
)

// startRetry begins the Retry operation described in spec.md §4.3.4: the
// room detaches every contributor except the one that triggered the
// retry, waits for the triggering contributor to settle into attached or
// failed on its own, and then re-runs the attachment cycle. It runs in
// its own goroutine, detached from the triggering call's context, since
// the attach cycle that discovered the suspension has already returned
// by the time retry finishes.
//
// The caller must not hold m.mu. It places the room into
// suspendedAwaitingStartOfRetry before returning.
func (m *Manager) startRetry(parent context.Context, trigger *contributor.Contributor, cause error) *scheduledTask {
	task, taskCtx := newScheduledTask(context.Background(), newOperationID())

	m.mu.Lock()
	m.transitionLocked(statusSuspendedAwaitingStartOfRetry{Task: task, Cause: cause})
	m.mu.Unlock()

	go m.runRetry(taskCtx, task, trigger, cause)

	return task
}

func (m *Manager) runRetry(ctx context.Context, task *scheduledTask, trigger *contributor.Contributor, cause error) {
	defer task.finish()

	opID := newOperationID()
	m.mu.Lock()
	m.transitionLocked(statusSuspended{RetryOpID: opID, Cause: cause})
	m.mu.Unlock()

	if detachCause := m.runDetachmentCycle(ctx, trigger); detachCause != nil {
		// The detachment cycle has already transitioned the room to
		// failed as soon as it found a contributor failed; Retry just
		// ends here rather than running a second teardown sweep.
		m.completeOperation(opID, OpResult{Err: detachCause})
		return
	}

	if err := m.waitForContributorToSettle(ctx, trigger); err != nil {
		m.completeOperation(opID, OpResult{Err: err})
		return
	}

	if trigger.Adapter.State() == realtime.ChannelStateFailed {
		cause := trigger.Adapter.ErrorReason()
		m.mu.Lock()
		m.transitionLocked(statusFailed{Cause: cause})
		m.mu.Unlock()
		m.completeOperation(opID, OpResult{Err: cause})
		return
	}

	m.mu.Lock()
	m.transitionLocked(statusAttaching{OpID: opID, Trigger: TriggerRetryOp})
	m.mu.Unlock()

	err := m.runAttachmentCycle(ctx, opID, TriggerRetryOp, cause)
	m.completeOperation(opID, OpResult{Err: err})
}

// waitForContributorToSettle blocks until trigger's channel reaches
// attached or failed, per spec.md §4.3.4. It first checks the current
// snapshot, since the contributor may have already settled by the time
// detachment of the other contributors finished; it then falls back to
// consuming the state-change stream, re-checking the snapshot on every
// event to tolerate a state/reason pair that raced with the subscribe
// call (spec.md §9's open question on this step).
func (m *Manager) waitForContributorToSettle(ctx context.Context, trigger *contributor.Contributor) error {
	if settled(trigger.Adapter.State()) {
		return nil
	}

	ch, cancel := trigger.Adapter.SubscribeToState()
	defer cancel()

	if settled(trigger.Adapter.State()) {
		return nil
	}

	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			if settled(trigger.Adapter.State()) {
				return nil
			}
		case <-m.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func settled(s realtime.ChannelState) bool {
	return s == realtime.ChannelStateAttached || s == realtime.ChannelStateFailed
}
