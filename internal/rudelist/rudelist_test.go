package rudelist

import (
	"testing"
	"time"
)

func TestIsRudeBelowThreshold(t *testing.T) {
	l := New(3)
	for i := 0; i < 3; i++ {
		l.Register("addr")
	}
	if l.IsRude("addr") {
		t.Fatal("3 hits at rate 3 should not be rude")
	}
}

func TestIsRudeAboveThreshold(t *testing.T) {
	l := New(3)
	for i := 0; i < 4; i++ {
		l.Register("addr")
	}
	if !l.IsRude("addr") {
		t.Fatal("4 hits at rate 3 should be rude")
	}
}

func TestIsRudeEvictsStaleHits(t *testing.T) {
	now := time.Now()
	l := New(1)
	l.now = func() time.Time { return now }
	l.Register("addr")
	l.Register("addr")

	l.now = func() time.Time { return now.Add(2 * time.Second) }
	if l.IsRude("addr") {
		t.Fatal("hits older than the 1s window should be evicted before counting")
	}
}

func TestDisabledWhenMaxRateZero(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		l.Register("addr")
	}
	if l.IsRude("addr") {
		t.Fatal("maxRate <= 0 should disable rude detection entirely")
	}
}

func TestForgetClearsHistory(t *testing.T) {
	l := New(1)
	l.Register("addr")
	l.Register("addr")
	if !l.IsRude("addr") {
		t.Fatal("setup: expected addr to be rude before Forget")
	}
	l.Forget("addr")
	if l.IsRude("addr") {
		t.Fatal("Forget should clear tracked history for addr")
	}
}
