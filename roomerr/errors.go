// Package roomerr defines the wire-level error envelope shared between the
// realtime transport and the room lifecycle manager, plus the sentinel
// errors the manager's public operations return.
package roomerr

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the manager. These mirror the realtime
// transport's own error code namespace; values above 90000 are reserved
// for errors originated by the manager itself rather than forwarded from
// a contributor.
const (
	CodeAttachmentFailed                             = 90001
	CodeDetachmentFailed                             = 90002
	CodeRoomIsReleasing                              = 90003
	CodeRoomIsReleased                                = 90004
	CodeRoomInFailedState                             = 90005
	CodePresenceOperationRequiresRoomAttach           = 90006
	CodeRoomTransitionedToInvalidStateForPresenceOp   = 90007
	CodeInconsistentRoomOptions                       = 90008
	CodeUnknownError                                  = 90009
)

// Error is the wire-level error envelope `{code, statusCode, message,
// cause?}` described in spec.md §6. Contributors, the transport, and the
// manager all speak this type so that a contributor's attach/detach
// failure can be wrapped without losing its original shape.
type Error struct {
	Code       int
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (code=%d, statusCode=%d): %v", e.Message, e.Code, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s (code=%d, statusCode=%d)", e.Message, e.Code, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error envelope.
func New(code, statusCode int, message string, cause error) *Error {
	return &Error{Code: code, StatusCode: statusCode, Message: message, Cause: cause}
}

// Unknown fabricates a synthetic cause for a state change that arrived
// without a reason. spec.md §9 asks implementations to log and fabricate
// rather than abort when this (supposedly impossible) case occurs.
func Unknown(context string) *Error {
	return New(CodeUnknownError, 500, "unknown error: "+context, nil)
}

// Sentinel errors for user-visible contract failures. Callers compare
// against these with errors.Is; the manager always returns a *Error so
// callers can also recover the full envelope with errors.As.
var (
	ErrRoomIsReleasing = errors.New("room is releasing")
	ErrRoomIsReleased  = errors.New("room is released")
	ErrRoomInFailedState = errors.New("room is in a failed state")
)

// AttachmentFailed wraps a contributor's attach failure for the given
// feature, as required by spec.md §6/§7.
func AttachmentFailed(feature string, cause error) *Error {
	return New(CodeAttachmentFailed, 500, fmt.Sprintf("failed to attach contributor %q", feature), cause)
}

// DetachmentFailed wraps a contributor's detach failure for the given
// feature.
func DetachmentFailed(feature string, cause error) *Error {
	return New(CodeDetachmentFailed, 500, fmt.Sprintf("failed to detach contributor %q", feature), cause)
}

// RoomIsReleasing is returned by user operations invoked while the room
// is in the process of releasing.
func RoomIsReleasing() *Error {
	return New(CodeRoomIsReleasing, 400, ErrRoomIsReleasing.Error(), ErrRoomIsReleasing)
}

// RoomIsReleased is returned by user operations invoked after the room
// has released.
func RoomIsReleased() *Error {
	return New(CodeRoomIsReleased, 400, ErrRoomIsReleased.Error(), ErrRoomIsReleased)
}

// RoomInFailedState is returned by Detach when the room is failed.
func RoomInFailedState() *Error {
	return New(CodeRoomInFailedState, 500, ErrRoomInFailedState.Error(), ErrRoomInFailedState)
}

// PresenceOperationRequiresRoomAttach is returned by the presence gate
// when the room is in any status other than attaching/attached.
func PresenceOperationRequiresRoomAttach(feature string) *Error {
	return New(CodePresenceOperationRequiresRoomAttach, 400,
		fmt.Sprintf("%s operation requires the room to be attached", feature), nil)
}

// RoomTransitionedToInvalidStateForPresenceOperation is returned by the
// presence gate when a wait-for-attached call observes a transition to
// anything other than attached.
func RoomTransitionedToInvalidStateForPresenceOperation(cause error) *Error {
	return New(CodeRoomTransitionedToInvalidStateForPresenceOp, 500,
		"room transitioned to an invalid state while waiting to attach", cause)
}

// InconsistentRoomOptions is raised by the room registry (not the
// manager itself) when a caller requests a room with options that
// conflict with an already-constructed room of the same ID.
func InconsistentRoomOptions(requested, existing string) *Error {
	return New(CodeInconsistentRoomOptions, 400,
		fmt.Sprintf("requested room options %q are inconsistent with existing options %q", requested, existing), nil)
}
