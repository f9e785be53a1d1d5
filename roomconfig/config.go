// Package roomconfig loads the small set of tunables the lifecycle
// manager needs, following the teacher's feeder-chain shape
// (config_feeders.go / feeders package): a TOML file supplies defaults,
// and environment variables override individual fields with typed
// casting rather than raw string assignment.
package roomconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
)

// Config holds every timing constant and feature toggle spec.md fixes or
// makes configurable. The constants named in spec.md §6 are the
// defaults; they are exposed as fields (rather than hardcoded) so tests
// can shrink them, the same way the teacher's module configs expose
// defaults that production can override.
type Config struct {
	// TransientDisconnectTimeout is the grace period (spec.md: 5000ms)
	// during which a contributor may return to attached without the
	// room itself transitioning to attaching.
	TransientDisconnectTimeout time.Duration `toml:"transient_disconnect_timeout"`

	// DetachRetryInterval is the spacing between detach retries in the
	// detachment and release cycles (spec.md: 250ms).
	DetachRetryInterval time.Duration `toml:"detach_retry_interval"`

	// TypingPresenceGetRetryInitialBackoff, MaxBackoff and TotalTimeout
	// describe the typing facade's presence-get retry envelope
	// (spec.md §6: 1s initial, 5s cap, 30s total, full jitter at half
	// the current delay).
	TypingPresenceGetRetryInitialBackoff time.Duration `toml:"typing_presence_get_initial_backoff"`
	TypingPresenceGetRetryMaxBackoff     time.Duration `toml:"typing_presence_get_max_backoff"`
	TypingPresenceGetRetryTotalTimeout   time.Duration `toml:"typing_presence_get_total_timeout"`

	// RoomStatusSubscriptionBuffer is a queue size carried for callers
	// that build a bounded onRoomStatusChange policy. The manager does
	// not read it: OnRoomStatusChange uses the policy it is given.
	RoomStatusSubscriptionBuffer int `toml:"room_status_subscription_buffer"`
}

// Default returns the configuration implied directly by spec.md §6.
func Default() Config {
	return Config{
		TransientDisconnectTimeout:           5 * time.Second,
		DetachRetryInterval:                  250 * time.Millisecond,
		TypingPresenceGetRetryInitialBackoff: time.Second,
		TypingPresenceGetRetryMaxBackoff:     5 * time.Second,
		TypingPresenceGetRetryTotalTimeout:   30 * time.Second,
		RoomStatusSubscriptionBuffer:         64,
	}
}

// Load reads a TOML file at path (if it exists) over the defaults, then
// applies environment variable overrides. A missing file is not an
// error: the defaults from spec.md already describe a fully valid
// configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("roomconfig: decode %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envOverride pairs an environment variable name with the setter that
// casts and applies it, mirroring the teacher's per-field env feeder
// behaviour without pulling in its full reflection-based feeder.
type envOverride struct {
	name  string
	apply func(raw string) error
}

func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		{"ROOM_TRANSIENT_DISCONNECT_TIMEOUT", durationSetter(&cfg.TransientDisconnectTimeout)},
		{"ROOM_DETACH_RETRY_INTERVAL", durationSetter(&cfg.DetachRetryInterval)},
		{"ROOM_TYPING_PRESENCE_GET_INITIAL_BACKOFF", durationSetter(&cfg.TypingPresenceGetRetryInitialBackoff)},
		{"ROOM_TYPING_PRESENCE_GET_MAX_BACKOFF", durationSetter(&cfg.TypingPresenceGetRetryMaxBackoff)},
		{"ROOM_TYPING_PRESENCE_GET_TOTAL_TIMEOUT", durationSetter(&cfg.TypingPresenceGetRetryTotalTimeout)},
		{"ROOM_STATUS_SUBSCRIPTION_BUFFER", intSetter(&cfg.RoomStatusSubscriptionBuffer)},
	}

	for _, o := range overrides {
		raw, ok := os.LookupEnv(o.name)
		if !ok || raw == "" {
			continue
		}
		if err := o.apply(raw); err != nil {
			return fmt.Errorf("roomconfig: env %s: %w", o.name, err)
		}
	}
	return nil
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(raw string) error {
		d, err := cast.ToDuration(raw)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(raw string) error {
		v, err := cast.ToInt(raw)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
