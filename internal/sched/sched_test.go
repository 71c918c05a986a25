package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEvery_FiresPeriodically(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired int64
	s.Every(10*time.Millisecond, func(now time.Time) {
		if now.IsZero() {
			t.Error("callback received zero time")
		}
		atomic.AddInt64(&fired, 1)
	})

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt64(&fired); n < 2 {
		t.Errorf("callback fired %d times, want >= 2", n)
	}
}

func TestStop_HaltsCallbacks(t *testing.T) {
	s := New()

	var fired int64
	s.Every(5*time.Millisecond, func(time.Time) {
		atomic.AddInt64(&fired, 1)
	})

	time.Sleep(30 * time.Millisecond)
	s.Stop()
	after := atomic.LoadInt64(&fired)

	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt64(&fired); n != after {
		t.Errorf("callback fired after Stop(): %d -> %d", after, n)
	}
}

func TestStop_Idempotent(t *testing.T) {
	s := New()
	s.Every(time.Hour, func(time.Time) {})
	s.Stop()
	s.Stop() // must not panic
}
