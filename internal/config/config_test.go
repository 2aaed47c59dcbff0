package config

import "testing"

func TestNormalizeFillsAllDefaults(t *testing.T) {
	got := Config{}.Normalize()

	want := Config{
		PresenceBroadcastInterval:      DefaultPresenceBroadcastInterval,
		FastSwitchboardRequestInterval: DefaultFastSwitchboardRequestInterval,
		SlowSwitchboardRequestInterval: DefaultSlowSwitchboardRequestInterval,
		GarbageCollectInterval:         DefaultGarbageCollectInterval,
		MaxConnections:                 DefaultMaxConnections,
		MemoryDuration:                 DefaultMemoryDuration,
		MessageTTLMax:                  DefaultMessageTTLMax,
	}
	if got != want {
		t.Fatalf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNormalizePreservesExplicitValues(t *testing.T) {
	cfg := Config{
		MaxConnections:           3,
		MessageTTLMax:            2,
		MaxMessageRateBeforeRude: 5,
		DataDir:                  "/tmp/meshnet",
	}.Normalize()

	if cfg.MaxConnections != 3 {
		t.Fatalf("expected explicit MaxConnections to survive, got %d", cfg.MaxConnections)
	}
	if cfg.MessageTTLMax != 2 {
		t.Fatalf("expected explicit MessageTTLMax to survive, got %d", cfg.MessageTTLMax)
	}
	if cfg.MaxMessageRateBeforeRude != 5 {
		t.Fatalf("expected explicit rate to survive, got %v", cfg.MaxMessageRateBeforeRude)
	}
	if cfg.DataDir != "/tmp/meshnet" {
		t.Fatalf("expected explicit DataDir to survive, got %q", cfg.DataDir)
	}
	// Untouched fields should still receive defaults.
	if cfg.GarbageCollectInterval != DefaultGarbageCollectInterval {
		t.Fatalf("expected default GarbageCollectInterval, got %v", cfg.GarbageCollectInterval)
	}
}

func TestNormalizeZeroRateStaysUnlimited(t *testing.T) {
	cfg := Config{}.Normalize()
	if cfg.MaxMessageRateBeforeRude != 0 {
		t.Fatalf("expected zero rate to mean unlimited, got %v", cfg.MaxMessageRateBeforeRude)
	}
}
