// Package config holds meshnet's tunables, defaulted the way the teacher
// defaults NodeConfig: a plain struct with a Normalize method that fills
// zero-value fields, rather than a third-party config loader. There is no
// multi-source layering (env/flags/file) anywhere in the teacher or the
// pack's comparable repos to justify one here.
package config

import "time"

// Config holds every tunable spec.md §6 names. All fields are optional;
// Normalize fills the documented defaults.
type Config struct {
	PresenceBroadcastInterval       time.Duration
	FastSwitchboardRequestInterval  time.Duration
	SlowSwitchboardRequestInterval  time.Duration
	GarbageCollectInterval          time.Duration
	MaxMessageRateBeforeRude        float64 // msgs/sec; 0 means unlimited
	MaxConnections                  int
	MemoryDuration                  time.Duration
	MessageTTLMax                   int

	// DataDir, when set, enables bbolt-backed identity and seen-message
	// persistence (internal/identitystore). Empty means fully in-memory.
	DataDir string
}

// Defaults mirror spec.md §6's configuration table exactly.
const (
	DefaultPresenceBroadcastInterval      = 5000 * time.Millisecond
	DefaultFastSwitchboardRequestInterval = 500 * time.Millisecond
	DefaultSlowSwitchboardRequestInterval = 3000 * time.Millisecond
	DefaultGarbageCollectInterval         = 5000 * time.Millisecond
	DefaultMaxConnections                 = 10
	DefaultMemoryDuration                 = 60000 * time.Millisecond
	DefaultMessageTTLMax                  = 6
)

// Normalize returns a copy of cfg with every zero-value field set to its
// documented default.
func (cfg Config) Normalize() Config {
	if cfg.PresenceBroadcastInterval == 0 {
		cfg.PresenceBroadcastInterval = DefaultPresenceBroadcastInterval
	}
	if cfg.FastSwitchboardRequestInterval == 0 {
		cfg.FastSwitchboardRequestInterval = DefaultFastSwitchboardRequestInterval
	}
	if cfg.SlowSwitchboardRequestInterval == 0 {
		cfg.SlowSwitchboardRequestInterval = DefaultSlowSwitchboardRequestInterval
	}
	if cfg.GarbageCollectInterval == 0 {
		cfg.GarbageCollectInterval = DefaultGarbageCollectInterval
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MemoryDuration == 0 {
		cfg.MemoryDuration = DefaultMemoryDuration
	}
	if cfg.MessageTTLMax == 0 {
		cfg.MessageTTLMax = DefaultMessageTTLMax
	}
	// MaxMessageRateBeforeRude's zero value already means "unlimited".
	return cfg
}
