// Package realtime defines the boundary interfaces the room lifecycle
// manager consumes from the underlying realtime transport. The transport
// itself (connection management, wire protocol, REST fallback) is out of
// scope for this module; only the shapes the core depends on live here,
// the same way the teacher framework's modules depend on small seams
// (modular.Application, modular.Logger) rather than concrete transports.
package realtime

import "context"

// ChannelState is the transport-level state of one realtime channel.
type ChannelState int

const (
	ChannelStateInitialized ChannelState = iota
	ChannelStateAttaching
	ChannelStateAttached
	ChannelStateDetaching
	ChannelStateDetached
	ChannelStateSuspended
	ChannelStateFailed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelStateInitialized:
		return "initialized"
	case ChannelStateAttaching:
		return "attaching"
	case ChannelStateAttached:
		return "attached"
	case ChannelStateDetaching:
		return "detaching"
	case ChannelStateDetached:
		return "detached"
	case ChannelStateSuspended:
		return "suspended"
	case ChannelStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChangeEvent is the event kind carried by a channel state-change
// record, per spec.md §4.2.
type StateChangeEvent int

const (
	EventAttached StateChangeEvent = iota
	EventDetached
	EventAttaching
	EventFailed
	EventSuspended
	EventUpdate
)

func (e StateChangeEvent) String() string {
	switch e {
	case EventAttached:
		return "attached"
	case EventDetached:
		return "detached"
	case EventAttaching:
		return "attaching"
	case EventFailed:
		return "failed"
	case EventSuspended:
		return "suspended"
	case EventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// StateChange is the record a channel's state-change stream emits.
type StateChange struct {
	Current  ChannelState
	Previous ChannelState
	Event    StateChangeEvent
	// Resumed indicates, for attached/update events, whether the
	// transport resumed an existing session without loss of continuity.
	Resumed bool
	// Reason carries the cause of the transition, when one exists. Per
	// spec.md §9, failed/suspended transitions are expected to always
	// carry a reason; a nil reason there is a contract violation the
	// caller should treat as a bug to paper over, not ignore.
	Reason error
}

// Channel is the minimal surface the contributor adapter wraps. A real
// implementation would be backed by a live realtime connection; tests
// and the bundled demo use an in-memory fake.
type Channel interface {
	Attach(ctx context.Context) error
	Detach(ctx context.Context) error
	State() ChannelState
	ErrorReason() error
	// Subscribe returns a channel of state-change records. Calling the
	// returned cancel function stops further deliveries on that channel;
	// whether the channel is also closed is up to the implementation
	// (faketransport.Channel does not close it).
	Subscribe() (ch <-chan StateChange, cancel func())
}
