// Package faketransport provides an in-memory realtime.Channel double for
// driving the lifecycle manager's unit and BDD tests without a live
// transport, grounded on the teacher's mockApp/testLogger test fixtures
// (e.g. modules/eventbus/module_test.go).
package faketransport

import (
	"context"
	"sync"

	"github.com/chatcore/roomkit/realtime"
)

// Channel is a fully scriptable realtime.Channel. Tests arrange its
// behaviour with SetAttachResult/SetDetachResult and drive asynchronous
// transitions with Push.
type Channel struct {
	mu          sync.Mutex
	state       realtime.ChannelState
	errorReason error

	attachErr  error
	attachTo   realtime.ChannelState
	detachErr  error
	detachTo   realtime.ChannelState

	subs []chan realtime.StateChange
}

// New creates a Channel starting in the initialized state.
func New() *Channel {
	return &Channel{state: realtime.ChannelStateInitialized}
}

// SetAttachResult arranges that every subsequent Attach call, until the
// next SetAttachResult, leaves the channel in toState, returning err
// (err may be nil).
func (c *Channel) SetAttachResult(toState realtime.ChannelState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachTo = toState
	c.attachErr = err
}

// SetDetachResult arranges that every subsequent Detach call, until the
// next SetDetachResult, leaves the channel in toState, returning err.
func (c *Channel) SetDetachResult(toState realtime.ChannelState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detachTo = toState
	c.detachErr = err
}

func (c *Channel) Attach(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	to := c.attachTo
	err := c.attachErr
	c.mu.Unlock()

	if to == 0 && err == nil {
		to = realtime.ChannelStateAttached
	}
	c.transition(prev, to, eventForTarget(to), false, err)
	return err
}

func (c *Channel) Detach(ctx context.Context) error {
	c.mu.Lock()
	prev := c.state
	to := c.detachTo
	err := c.detachErr
	c.mu.Unlock()

	if to == 0 && err == nil {
		to = realtime.ChannelStateDetached
	}
	c.transition(prev, to, eventForTarget(to), false, err)
	return err
}

func eventForTarget(to realtime.ChannelState) realtime.StateChangeEvent {
	switch to {
	case realtime.ChannelStateAttached:
		return realtime.EventAttached
	case realtime.ChannelStateDetached:
		return realtime.EventDetached
	case realtime.ChannelStateAttaching:
		return realtime.EventAttaching
	case realtime.ChannelStateSuspended:
		return realtime.EventSuspended
	case realtime.ChannelStateFailed:
		return realtime.EventFailed
	default:
		return realtime.EventUpdate
	}
}

// Push injects an asynchronous state change, as if the transport itself
// had observed it (e.g. a spontaneous suspend or an update event).
func (c *Channel) Push(sc realtime.StateChange) {
	c.mu.Lock()
	sc.Previous = c.state
	c.state = sc.Current
	c.errorReason = sc.Reason
	subs := make([]chan realtime.StateChange, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		ch <- sc
	}
}

func (c *Channel) transition(prev, to realtime.ChannelState, event realtime.StateChangeEvent, resumed bool, reason error) {
	c.mu.Lock()
	c.state = to
	c.errorReason = reason
	subs := make([]chan realtime.StateChange, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	sc := realtime.StateChange{Current: to, Previous: prev, Event: event, Resumed: resumed, Reason: reason}
	for _, ch := range subs {
		ch <- sc
	}
}

func (c *Channel) State() realtime.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) ErrorReason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorReason
}

func (c *Channel) Subscribe() (<-chan realtime.StateChange, func()) {
	ch := make(chan realtime.StateChange, 16)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}
