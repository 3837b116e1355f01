package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock steps time manually for deterministic window tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBudget() (*Budget, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewBudget(WithClock(clock.now)), clock
}

// TestAdmitUnderCeiling verifies requests are admitted while both windows
// have headroom.
func TestAdmitUnderCeiling(t *testing.T) {
	b, _ := newTestBudget()

	if !b.Admit(false) {
		t.Fatal("Admit(read) should succeed on an empty budget")
	}
	if !b.Admit(true) {
		t.Fatal("Admit(write) should succeed on an empty budget")
	}
}

// TestAdmitTotalCeiling verifies the total window ceiling blocks all
// requests once reached.
func TestAdmitTotalCeiling(t *testing.T) {
	b, _ := newTestBudget()

	for i := 0; i < TotalCeiling; i++ {
		b.Record(false)
	}

	if b.Admit(false) {
		t.Error("Admit(read) should fail at total ceiling")
	}
	if b.Admit(true) {
		t.Error("Admit(write) should fail at total ceiling")
	}
}

// TestAdmitWriteCeiling verifies the write ceiling blocks writes but not reads.
func TestAdmitWriteCeiling(t *testing.T) {
	b, _ := newTestBudget()

	for i := 0; i < WriteCeiling; i++ {
		b.Record(true)
	}

	if b.Admit(true) {
		t.Error("Admit(write) should fail at write ceiling")
	}
	if !b.Admit(false) {
		t.Error("Admit(read) should still succeed: total window has headroom")
	}
}

// TestTryAcquireChargesAtomically verifies a successful acquisition both
// admits and records in one step, and a refused one charges nothing.
func TestTryAcquireChargesAtomically(t *testing.T) {
	b, _ := newTestBudget()

	if !b.TryAcquire(true) {
		t.Fatal("TryAcquire(write) should succeed on an empty budget")
	}
	total, writes := b.WindowCounts()
	if total != 1 || writes != 1 {
		t.Fatalf("window counts after acquire = (%d, %d), want (1, 1)", total, writes)
	}

	for i := 0; i < WriteCeiling-1; i++ {
		b.Record(true)
	}
	if b.TryAcquire(true) {
		t.Fatal("TryAcquire(write) should fail at write ceiling")
	}
	total, writes = b.WindowCounts()
	if writes != WriteCeiling {
		t.Errorf("refused acquisition changed the write window: %d", writes)
	}
	if total != WriteCeiling {
		t.Errorf("refused acquisition changed the total window: %d", total)
	}
}

// TestTryAcquireLastSlotRace verifies concurrent callers racing for the
// last free write slot: exactly one wins and the ceiling holds.
func TestTryAcquireLastSlotRace(t *testing.T) {
	b := NewBudget()

	for i := 0; i < WriteCeiling-1; i++ {
		b.Record(true)
	}

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryAcquire(true) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := wins.Load(); n != 1 {
		t.Errorf("%d callers acquired the last slot, want exactly 1", n)
	}
	_, writes := b.WindowCounts()
	if writes != WriteCeiling {
		t.Errorf("write window = %d, want exactly the ceiling %d", writes, WriteCeiling)
	}
}

// TestWindowExpiry verifies entries older than the window are purged and
// capacity is restored.
func TestWindowExpiry(t *testing.T) {
	b, clock := newTestBudget()

	for i := 0; i < WriteCeiling; i++ {
		b.Record(true)
	}
	if b.Admit(true) {
		t.Fatal("write window should be full")
	}

	clock.advance(WindowLength + time.Second)

	if !b.Admit(true) {
		t.Error("Admit(write) should succeed after the window slides past")
	}
	total, writes := b.WindowCounts()
	if total != 0 || writes != 0 {
		t.Errorf("expected empty windows after expiry, got total=%d writes=%d", total, writes)
	}
}

// TestPreemptiveDelayBelowThreshold verifies no delay at low utilization.
func TestPreemptiveDelayBelowThreshold(t *testing.T) {
	b, _ := newTestBudget()

	for i := 0; i < TotalCeiling/2; i++ {
		b.Record(false)
	}

	if d := b.PreemptiveDelay(false); d != 0 {
		t.Errorf("expected zero delay at 50%% utilization, got %v", d)
	}
}

// TestPreemptiveDelayRamp verifies the delay grows with utilization above
// the threshold and never exceeds the cap.
func TestPreemptiveDelayRamp(t *testing.T) {
	b, _ := newTestBudget()

	// 85% of the total window
	for i := 0; i < (TotalCeiling*85)/100; i++ {
		b.Record(false)
	}
	at85 := b.PreemptiveDelay(false)
	if at85 <= 0 {
		t.Fatalf("expected positive delay at 85%% utilization, got %v", at85)
	}

	// 95%
	for i := 0; i < (TotalCeiling*10)/100; i++ {
		b.Record(false)
	}
	at95 := b.PreemptiveDelay(false)
	if at95 <= at85 {
		t.Errorf("delay should grow with utilization: 85%%=%v 95%%=%v", at85, at95)
	}
	if at95 > PreemptiveDelayMax+RejectionPenaltyMax {
		t.Errorf("delay %v exceeds cap", at95)
	}
}

// TestPreemptiveDelayRejectionPenalty verifies consecutive 429s add caution
// even at low utilization, and a success clears it.
func TestPreemptiveDelayRejectionPenalty(t *testing.T) {
	b, _ := newTestBudget()

	b.NoteRejected()
	b.NoteRejected()
	if n := b.ConsecutiveRejections(); n != 2 {
		t.Fatalf("ConsecutiveRejections() = %d, want 2", n)
	}

	d := b.PreemptiveDelay(false)
	if d != 2*RejectionPenalty {
		t.Errorf("expected %v penalty after 2 rejections, got %v", 2*RejectionPenalty, d)
	}

	b.NoteSuccess()
	if d := b.PreemptiveDelay(false); d != 0 {
		t.Errorf("expected zero delay after success reset, got %v", d)
	}
}

// TestBackoffRetryAfterVerbatim verifies a server Retry-After value is used
// as-is, overriding the exponential schedule.
func TestBackoffRetryAfterVerbatim(t *testing.T) {
	b, _ := newTestBudget()

	if d := b.BackoffDelay(1, "7"); d != 7*time.Second {
		t.Errorf("BackoffDelay(1, \"7\") = %v, want 7s", d)
	}
	// Malformed header falls back to computed backoff.
	if d := b.BackoffDelay(1, "soon"); d > BackoffCap || d <= 0 {
		t.Errorf("malformed Retry-After should fall back to computed delay, got %v", d)
	}
}

// TestBackoffMonotonicAndCapped verifies the computed delay is
// non-decreasing in attempt and never exceeds the cap.
func TestBackoffMonotonicAndCapped(t *testing.T) {
	b, _ := newTestBudget()

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := b.BackoffDelay(attempt, "")
		if d > BackoffCap {
			t.Errorf("attempt %d: delay %v exceeds cap %v", attempt, d, BackoffCap)
		}
		if d < prev {
			t.Errorf("attempt %d: delay %v decreased from %v", attempt, d, prev)
		}
		prev = d
	}
}

// TestBackoffJitterBand verifies the first delay stays inside the ±20% band.
func TestBackoffJitterBand(t *testing.T) {
	b, _ := newTestBudget()

	for i := 0; i < 50; i++ {
		d := b.BackoffDelay(1, "")
		min := time.Duration(float64(BackoffBase) * (1 - BackoffJitter))
		max := time.Duration(float64(BackoffBase) * (1 + BackoffJitter))
		if d < min || d > max {
			t.Fatalf("BackoffDelay(1) = %v, want within [%v, %v]", d, min, max)
		}
	}
}

// TestOptimalBatchSizeFresh verifies a fresh budget advises the server
// maximum.
func TestOptimalBatchSizeFresh(t *testing.T) {
	b, _ := newTestBudget()

	if size := b.OptimalBatchSize(); size != MaxBatchSize {
		t.Errorf("fresh budget batch size = %d, want %d", size, MaxBatchSize)
	}
}

// TestOptimalBatchSizeShrinks verifies the advice shrinks with the write
// window and never drops below 1.
func TestOptimalBatchSizeShrinks(t *testing.T) {
	b, _ := newTestBudget()

	// 10 write slots remain: floor(0.8*10) = 8
	for i := 0; i < WriteCeiling-10; i++ {
		b.Record(true)
	}
	if size := b.OptimalBatchSize(); size != 8 {
		t.Errorf("batch size with 10 write slots = %d, want 8", size)
	}

	// Exhaust the write window entirely: advice floors at 1.
	for i := 0; i < 10; i++ {
		b.Record(true)
	}
	if size := b.OptimalBatchSize(); size != 1 {
		t.Errorf("batch size with exhausted write window = %d, want 1", size)
	}
}

// TestQuotaInvariant drives a mixed sequence through Admit/Record and checks
// the windows never exceed their ceilings when admission is obeyed.
func TestQuotaInvariant(t *testing.T) {
	b, clock := newTestBudget()

	for i := 0; i < 3000; i++ {
		isWrite := i%7 == 0
		if b.Admit(isWrite) {
			b.Record(isWrite)
		}
		total, writes := b.WindowCounts()
		if total > TotalCeiling {
			t.Fatalf("total window %d exceeds ceiling at i=%d", total, i)
		}
		if writes > WriteCeiling {
			t.Fatalf("write window %d exceeds ceiling at i=%d", writes, i)
		}
		clock.advance(5 * time.Millisecond)
	}
}
