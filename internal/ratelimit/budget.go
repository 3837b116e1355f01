package ratelimit

import (
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Budget tracks the tenant-wide request quota using two sliding windows:
// one for all requests and one for writes. It is pure bookkeeping — it
// performs no I/O, never sleeps, and never returns errors. Callers consult
// it before sending and obey its advice; it is the single serialization
// point deciding who may send next.
//
// One Budget instance must be shared by every caller hitting the same
// tenant, otherwise independent windows can jointly exceed the server-side
// quota. The instance is constructed explicitly and injected into the API
// client rather than held in package state.
type Budget struct {
	mu     sync.Mutex
	total  []time.Time // send instants, all methods, oldest first
	writes []time.Time // send instants, writes only, oldest first

	// consecRejects counts upstream 429s since the last success. It feeds
	// extra caution into PreemptiveDelay until a success clears it.
	consecRejects int
	lastReject    time.Time

	backoffBase time.Duration
	backoffCap  time.Duration

	now func() time.Time
}

// Option configures a Budget.
type Option func(*Budget)

// WithClock overrides the time source. Tests use this to step through
// window expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(b *Budget) { b.now = now }
}

// WithBackoff overrides the backoff base and cap. Tests use millisecond
// values so retry paths run fast.
func WithBackoff(base, cap time.Duration) Option {
	return func(b *Budget) {
		b.backoffBase = base
		b.backoffCap = cap
	}
}

// NewBudget creates a Budget with the tenant default windows and ceilings.
func NewBudget(opts ...Option) *Budget {
	b := &Budget{
		backoffBase: BackoffBase,
		backoffCap:  BackoffCap,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TryAcquire admits and charges one request in a single critical section
// when both ceilings have headroom. The check and the append happen under
// one lock so two callers racing for the last free slot can never both
// take it. The charge sticks even if the request later fails, matching
// the server's view of the quota.
func (b *Budget) TryAcquire(isWrite bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()

	if len(b.total) >= TotalCeiling {
		return false
	}
	if isWrite && len(b.writes) >= WriteCeiling {
		return false
	}

	now := b.now()
	b.total = append(b.total, now)
	if isWrite {
		b.writes = append(b.writes, now)
	}
	return true
}

// Admit reports whether one more request could be sent now without
// breaking either ceiling. Advisory only: the answer can be stale by the
// time the caller acts on it. Senders must go through TryAcquire.
func (b *Budget) Admit(isWrite bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()

	if len(b.total) >= TotalCeiling {
		return false
	}
	if isWrite && len(b.writes) >= WriteCeiling {
		return false
	}
	return true
}

// Record charges one request to the window(s) without an admission check.
// For callers that issued a wire attempt outside the TryAcquire path.
func (b *Budget) Record(isWrite bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.total = append(b.total, now)
	if isWrite {
		b.writes = append(b.writes, now)
	}
}

// PreemptiveDelay returns how long the caller should sleep before sending,
// to smooth bursts before they are ever rejected. Zero when utilization of
// the relevant window is at or below the threshold. Above it, the delay
// ramps linearly to PreemptiveDelayMax, plus a penalty per consecutive
// upstream rejection.
func (b *Budget) PreemptiveDelay(isWrite bool) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()

	util := float64(len(b.total)) / float64(TotalCeiling)
	if isWrite {
		if w := float64(len(b.writes)) / float64(WriteCeiling); w > util {
			util = w
		}
	}

	var delay time.Duration
	if util > PreemptiveThreshold {
		over := (util - PreemptiveThreshold) / (1 - PreemptiveThreshold)
		if over > 1 {
			over = 1
		}
		delay = time.Duration(over * float64(PreemptiveDelayMax))
	}

	if b.consecRejects > 0 {
		penalty := time.Duration(b.consecRejects) * RejectionPenalty
		if penalty > RejectionPenaltyMax {
			penalty = RejectionPenaltyMax
		}
		delay += penalty
	}

	return delay
}

// BackoffDelay computes the sleep before retry number attempt (1-based).
// A server-supplied Retry-After value (seconds, string-encoded) is used
// verbatim when present; otherwise exponential backoff with ±20% jitter,
// capped at the configured maximum.
func (b *Budget) BackoffDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	if attempt < 1 {
		attempt = 1
	}

	b.mu.Lock()
	base := float64(b.backoffBase)
	cap := b.backoffCap
	b.mu.Unlock()

	d := base * math.Pow(2, float64(attempt-1))
	// ±20% jitter; doubling dominates the jitter band, so delays stay
	// non-decreasing across attempts.
	d *= 1 + BackoffJitter*(2*rand.Float64()-1)

	delay := time.Duration(d)
	if delay > cap {
		delay = cap
	}
	return delay
}

// OptimalBatchSize advises how many operations to put in the next composite
// request given the remaining headroom in both windows. A fraction of the
// headroom is reserved for concurrent callers. Never less than 1, never
// more than the server's per-call ceiling.
func (b *Budget) OptimalBatchSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()

	remTotal := TotalCeiling - len(b.total)
	remWrite := WriteCeiling - len(b.writes)

	rem := remTotal
	if remWrite < rem {
		rem = remWrite
	}

	size := int(math.Floor(BatchHeadroom * float64(rem)))
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

// NoteRejected records an upstream 429. Consecutive rejections feed extra
// caution into PreemptiveDelay until NoteSuccess clears them.
func (b *Budget) NoteRejected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecRejects++
	b.lastReject = b.now()
}

// NoteSuccess records an upstream success, resetting the rejection streak.
func (b *Budget) NoteSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecRejects = 0
}

// ConsecutiveRejections returns the current rejection streak.
func (b *Budget) ConsecutiveRejections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecRejects
}

// WindowCounts returns the current (total, write) counts after pruning.
func (b *Budget) WindowCounts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	return len(b.total), len(b.writes)
}

// prune drops entries older than the window. Caller holds b.mu.
func (b *Budget) prune() {
	cutoff := b.now().Add(-WindowLength)
	b.total = pruneBefore(b.total, cutoff)
	b.writes = pruneBefore(b.writes, cutoff)
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	// Copy the survivors forward so the backing array does not grow
	// without bound across windows.
	n := copy(ts, ts[i:])
	return ts[:n]
}
