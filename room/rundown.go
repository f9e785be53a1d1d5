package room

import (
	"context"

	"github.com/chatcore/roomkit/realtime"
)

// startRundown begins the Rundown operation described in spec.md §4.3.5:
// every non-failed contributor is detached, with unbounded retry, after
// which the room settles into failed. It runs in its own goroutine,
// detached from the triggering call's context, since the triggering
// Attach operation has already returned its own error by the time
// rundown finishes. This is the only caller: per spec.md §4.3.5, Rundown
// triggers exclusively from a contributor left failed during the
// attachment cycle.
//
// The caller must not hold m.mu. It places the room into
// failedAwaitingStartOfRundown before returning, so the room is already
// failed while this goroutine is scheduled but not yet running. That
// status reports no operation id; Release waits on the task's done
// channel during this window instead.
func (m *Manager) startRundown(parent context.Context, cause error) *scheduledTask {
	task, taskCtx := newScheduledTask(context.Background(), newOperationID())

	m.mu.Lock()
	m.transitionLocked(statusFailedAwaitingStartOfRundown{Task: task, Cause: cause})
	m.mu.Unlock()

	go m.runRundown(taskCtx, task, cause)

	return task
}

func (m *Manager) runRundown(ctx context.Context, task *scheduledTask, cause error) {
	defer task.finish()

	opID := newOperationID()
	m.mu.Lock()
	m.transitionLocked(statusFailedAndPerformingRundown{OpID: opID, Cause: cause})
	m.mu.Unlock()

	m.runRundownDetachCycle(ctx)

	m.mu.Lock()
	m.transitionLocked(statusFailed{Cause: cause})
	m.mu.Unlock()

	m.completeOperation(opID, OpResult{Err: cause})
}

// runRundownDetachCycle detaches every contributor that did not itself
// fail, retrying indefinitely, per spec.md §4.3.5. Contributors already
// in the failed transport state are skipped: there is nothing further to
// detach.
func (m *Manager) runRundownDetachCycle(ctx context.Context) {
	for _, c := range m.contributors {
		if c.Adapter.State() == realtime.ChannelStateFailed {
			continue
		}
		m.detachOneWithUnboundedRetry(ctx, c)
	}
}
