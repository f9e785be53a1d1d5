package features

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chatcore/roomkit/internal/contributor"
	"github.com/chatcore/roomkit/roomconfig"
)

// typingChannel is the transport surface the typing facade drives.
type typingChannel interface {
	Enter(ctx context.Context) error
	Leave(ctx context.Context) error
}

// Typing is the typing-indicator feature facade. Start debounces: rapid
// repeated calls only send one enter, and a background timer sends leave
// once the caller stops calling Start, the same shape as the teacher's
// time.AfterFunc-based retention timer in modules/eventbus/memory.go.
type Typing struct {
	contributor *contributor.Contributor
	channel     typingChannel
	cfg         roomconfig.Config

	mu       sync.Mutex
	active   bool
	debounce *time.Timer
}

// NewTyping builds a Typing facade.
func NewTyping(c *contributor.Contributor, channel typingChannel, cfg roomconfig.Config) *Typing {
	return &Typing{contributor: c, channel: channel, cfg: cfg}
}

// Start marks the local client as typing, debounced over heartbeat:
// heartbeat is how long Start's effect lasts without being renewed
// before Leave is sent automatically.
func (f *Typing) Start(ctx context.Context, heartbeat time.Duration) error {
	f.mu.Lock()
	alreadyActive := f.active
	f.active = true
	if f.debounce != nil {
		f.debounce.Stop()
	}
	f.debounce = time.AfterFunc(heartbeat, f.stopDebounced)
	f.mu.Unlock()

	if alreadyActive {
		return nil
	}
	return f.channel.Enter(ctx)
}

// Stop marks the local client as no longer typing, immediately.
func (f *Typing) Stop(ctx context.Context) error {
	f.mu.Lock()
	if f.debounce != nil {
		f.debounce.Stop()
		f.debounce = nil
	}
	wasActive := f.active
	f.active = false
	f.mu.Unlock()

	if !wasActive {
		return nil
	}
	return f.channel.Leave(context.Background())
}

func (f *Typing) stopDebounced() {
	f.mu.Lock()
	f.active = false
	f.debounce = nil
	f.mu.Unlock()

	_ = f.channel.Leave(context.Background())
}

// GetCurrentlyTyping fetches the set of currently-typing clients via
// presence, retrying with the envelope from spec.md §6: exponential
// backoff from TypingPresenceGetRetryInitialBackoff, capped at
// TypingPresenceGetRetryMaxBackoff, full jitter applied around half the
// current delay, bounded by TypingPresenceGetRetryTotalTimeout overall.
func (f *Typing) GetCurrentlyTyping(ctx context.Context, presence *Presence) ([]PresenceMember, error) {
	deadline := time.Now().Add(f.cfg.TypingPresenceGetRetryTotalTimeout)
	delay := f.cfg.TypingPresenceGetRetryInitialBackoff

	for {
		members, err := presence.Get(ctx)
		if err == nil {
			return members, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}

		sleep := delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay *= 2
		if delay > f.cfg.TypingPresenceGetRetryMaxBackoff {
			delay = f.cfg.TypingPresenceGetRetryMaxBackoff
		}
	}
}
