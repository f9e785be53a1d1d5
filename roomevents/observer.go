// Package roomevents bridges the manager's internal room-status and
// discontinuity streams onto CloudEvents for external observability,
// grounded on the teacher's Observer/Subject pair (observer.go) and its
// NewCloudEvent helper (observer_cloudevents.go). This bridge is purely
// additive: it never gates or delays the manager's own typed
// subscriptions (spec.md §4.1), it only mirrors what already happened.
package roomevents

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Event type constants, following the teacher's reverse-domain-notation
// convention for CloudEvents types.
const (
	EventTypeRoomStatusChanged  = "com.chatcore.room.status.changed"
	EventTypeDiscontinuity      = "com.chatcore.room.contributor.discontinuity"
)

// Observer receives CloudEvents emitted by a Subject.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// Subject is something that can be observed. The room manager implements
// this optionally via Bridge, mirroring the teacher's application-level
// Subject.
type Subject interface {
	RegisterObserver(observer Observer, eventTypes ...string) error
	UnregisterObserver(observer Observer) error
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

type registration struct {
	observer   Observer
	eventTypes map[string]struct{}
}

// Bridge is a minimal Subject implementation the room manager owns.
// Observer errors are swallowed, so a failing observer never affects the
// manager's own lifecycle. Observers are called synchronously on the
// emitting goroutine (for status changes, while the manager holds its
// lock), so a slow observer delays the manager.
type Bridge struct {
	source string

	mu        sync.Mutex
	observers map[string]*registration
}

// NewBridge creates a Bridge that stamps `source` onto every CloudEvent
// it emits (typically the room ID).
func NewBridge(source string) *Bridge {
	return &Bridge{
		source:    source,
		observers: make(map[string]*registration),
	}
}

func (b *Bridge) RegisterObserver(observer Observer, eventTypes ...string) error {
	set := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
	b.mu.Lock()
	b.observers[observer.ObserverID()] = &registration{observer: observer, eventTypes: set}
	b.mu.Unlock()
	return nil
}

func (b *Bridge) UnregisterObserver(observer Observer) error {
	b.mu.Lock()
	delete(b.observers, observer.ObserverID())
	b.mu.Unlock()
	return nil
}

func (b *Bridge) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	b.mu.Lock()
	regs := make([]*registration, 0, len(b.observers))
	for _, r := range b.observers {
		regs = append(regs, r)
	}
	b.mu.Unlock()

	for _, r := range regs {
		if len(r.eventTypes) > 0 {
			if _, ok := r.eventTypes[event.Type()]; !ok {
				continue
			}
		}
		if err := r.observer.OnEvent(ctx, event); err != nil {
			// Best-effort fan-out: one observer's error must never
			// interrupt delivery to the rest, nor propagate to the
			// lifecycle manager.
			continue
		}
	}
	return nil
}

// EmitRoomStatusChanged builds and publishes a CloudEvent for a
// room-status transition.
func (b *Bridge) EmitRoomStatusChanged(ctx context.Context, roomID, current, previous string, cause error) {
	data := map[string]interface{}{
		"roomId":   roomID,
		"current":  current,
		"previous": previous,
	}
	if cause != nil {
		data["cause"] = cause.Error()
	}
	_ = b.NotifyObservers(ctx, newCloudEvent(EventTypeRoomStatusChanged, b.source, data))
}

// EmitDiscontinuity builds and publishes a CloudEvent for a contributor
// discontinuity.
func (b *Bridge) EmitDiscontinuity(ctx context.Context, roomID, feature string, cause error) {
	data := map[string]interface{}{
		"roomId":  roomID,
		"feature": feature,
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	_ = b.NotifyObservers(ctx, newCloudEvent(EventTypeDiscontinuity, b.source, data))
}

func newCloudEvent(eventType, source string, data map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

func generateEventID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
