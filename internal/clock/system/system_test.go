// Package system exercises the real-time clock and sleep adapters.
package system

import (
	"context"
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestSleeperCompletes checks a short sleep returns without error.
func TestSleeperCompletes(t *testing.T) {
	t.Parallel()

	s := NewSleeper()
	if err := s.Sleep(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
}

// TestSleeperHonorsContext checks cancellation wins over the timer.
func TestSleeperHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSleeper()
	start := time.Now()
	err := s.Sleep(ctx, time.Minute)
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected immediate return, took %v", elapsed)
	}
}

// TestSleeperZeroDuration checks a non-positive duration never blocks.
func TestSleeperZeroDuration(t *testing.T) {
	t.Parallel()

	s := NewSleeper()
	if err := s.Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) error = %v", err)
	}
}
