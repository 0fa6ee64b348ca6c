package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestTryAcquireExhaustsBurst(t *testing.T) {
	m := NewManager(1.0, 5, nil) // 1 token/sec, capacity 5
	defer m.Stop()

	now := time.Now()

	// The full burst is available immediately
	for i := 0; i < 5; i++ {
		if !m.TryAcquireAt(now, "caller-a", 1) {
			t.Fatalf("Expected acquire %d to be allowed", i+1)
		}
	}

	// The (C+1)-th acquire with zero elapsed time is denied
	if m.TryAcquireAt(now, "caller-a", 1) {
		t.Error("Expected acquire beyond capacity to be denied")
	}
}

func TestTryAcquireRefills(t *testing.T) {
	m := NewManager(1.0, 2, nil)
	defer m.Stop()

	now := time.Now()
	if !m.TryAcquireAt(now, "caller-a", 2) {
		t.Fatal("Expected initial burst to be allowed")
	}
	if m.TryAcquireAt(now, "caller-a", 1) {
		t.Fatal("Expected empty bucket to deny")
	}

	// After 1/R seconds one token has refilled
	later := now.Add(time.Second)
	if !m.TryAcquireAt(later, "caller-a", 1) {
		t.Error("Expected acquire to succeed after refill interval")
	}
	if m.TryAcquireAt(later, "caller-a", 1) {
		t.Error("Expected only one token to have refilled")
	}
}

func TestBucketsAreIndependentPerCaller(t *testing.T) {
	m := NewManager(1.0, 1, nil)
	defer m.Stop()

	now := time.Now()
	if !m.TryAcquireAt(now, "caller-a", 1) {
		t.Fatal("caller-a first acquire should be allowed")
	}
	if m.TryAcquireAt(now, "caller-a", 1) {
		t.Fatal("caller-a second acquire should be denied")
	}

	// caller-b has a full bucket of its own
	if !m.TryAcquireAt(now, "caller-b", 1) {
		t.Error("caller-b should not be affected by caller-a's consumption")
	}
}

func TestTimeUntilAvailableIsReadOnly(t *testing.T) {
	m := NewManager(2.0, 2, nil) // 2 tokens/sec
	defer m.Stop()

	now := time.Now()
	if !m.TryAcquireAt(now, "caller-a", 2) {
		t.Fatal("Expected initial burst to be allowed")
	}

	// Bucket is empty: one token takes 1/R = 0.5s
	wait := m.TimeUntilAvailableAt(now, "caller-a", 1)
	if wait != 500*time.Millisecond {
		t.Errorf("TimeUntilAvailable = %v, want 500ms", wait)
	}

	// The estimate must not consume tokens: asking again gives the same answer
	wait2 := m.TimeUntilAvailableAt(now, "caller-a", 1)
	if wait2 != wait {
		t.Errorf("Second estimate %v differs from first %v; state was mutated", wait2, wait)
	}

	// And the token that refills at now+0.5s is still acquirable
	if !m.TryAcquireAt(now.Add(500*time.Millisecond), "caller-a", 1) {
		t.Error("Estimation consumed the refilling token")
	}
}

func TestTimeUntilAvailableZeroWhenTokensPresent(t *testing.T) {
	m := NewManager(1.0, 3, nil)
	defer m.Stop()

	now := time.Now()
	if wait := m.TimeUntilAvailableAt(now, "caller-a", 2); wait != 0 {
		t.Errorf("Expected zero wait with a full bucket, got %v", wait)
	}
}

func TestTimeUntilAvailableBeyondCapacity(t *testing.T) {
	m := NewManager(1.0, 3, nil)
	defer m.Stop()

	if wait := m.TimeUntilAvailableAt(time.Now(), "caller-a", 4); wait != rate.InfDuration {
		t.Errorf("Expected InfDuration for n beyond capacity, got %v", wait)
	}
}

func TestNilManagerAllowsEverything(t *testing.T) {
	var m *Manager

	if !m.TryAcquire("anyone", 100) {
		t.Error("Nil manager should allow all acquires")
	}
	if wait := m.TimeUntilAvailable("anyone", 100); wait != 0 {
		t.Errorf("Nil manager wait = %v, want 0", wait)
	}
	stats := m.Stats()
	if enabled, ok := stats["enabled"].(bool); !ok || enabled {
		t.Errorf("Nil manager stats = %v, want enabled=false", stats)
	}
	m.Stop() // must not panic
}

func TestCleanupEvictsIdleBuckets(t *testing.T) {
	m := NewManager(1.0, 1, nil)
	defer m.Stop()

	m.TryAcquire("caller-a", 1)
	m.TryAcquire("caller-b", 1)

	m.mu.Lock()
	m.lastSeen["caller-a"] = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.cleanup(10 * time.Minute)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.limiters["caller-a"]; ok {
		t.Error("Expected idle bucket caller-a to be evicted")
	}
	if _, ok := m.limiters["caller-b"]; !ok {
		t.Error("Expected active bucket caller-b to survive cleanup")
	}
}
