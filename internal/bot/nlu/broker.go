package nlu

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default quota ceilings when no explicit limits are configured.  These match
// the free tier of the hosted provider the bot was originally deployed
// against.
const (
	DefaultMaxPerMinute = 15
	DefaultMaxPerDay    = 1500
)

// Limits supplies the quota ceilings.  Implementations may be hot-readable
// (e.g. backed by the runtime config store); the broker consults them on
// every dispatch decision rather than caching at construction time.
type Limits interface {
	MaxPerMinute() int
	MaxPerDay() int
}

// StaticLimits is a fixed Limits implementation.
type StaticLimits struct {
	PerMinute int
	PerDay    int
}

// MaxPerMinute returns the per-minute ceiling.
func (l StaticLimits) MaxPerMinute() int { return l.PerMinute }

// MaxPerDay returns the per-day ceiling.
func (l StaticLimits) MaxPerDay() int { return l.PerDay }

// QuotaWindow tracks provider usage within the current minute window and
// UTC calendar day.
type QuotaWindow struct {
	CountMinute int
	MinuteStart time.Time
	CountDay    int
	DayKey      string // UTC calendar date, "2006-01-02"
}

// Roll resets the counters whose window has elapsed: the minute counter
// exactly when now − MinuteStart ≥ 60 s, the day counter exactly when the
// UTC calendar date changes.
func (q *QuotaWindow) Roll(now time.Time) {
	if q.MinuteStart.IsZero() || now.Sub(q.MinuteStart) >= time.Minute {
		q.CountMinute = 0
		q.MinuteStart = now
	}
	if key := now.UTC().Format("2006-01-02"); key != q.DayKey {
		q.CountDay = 0
		q.DayKey = key
	}
}

// Status is a point-in-time snapshot of the broker, exposed on the ops
// surface.
type Status struct {
	PerMinuteUsed  int  `json:"per_minute_used"`
	PerMinuteLimit int  `json:"per_minute_limit"`
	PerDayUsed     int  `json:"per_day_used"`
	PerDayLimit    int  `json:"per_day_limit"`
	QueueDepth     int  `json:"queue_depth"`
	Processing     bool `json:"processing"`
}

// Observer receives broker events for metrics.  All methods must be
// non-blocking; a nil Observer disables observation.
type Observer interface {
	RequestDispatched()
	RequestRejected(reason string)
	QueueDepth(depth int)
	QuotaUsage(minuteUsed, dayUsed int)
}

type result struct {
	text string
	err  error
}

type pendingRequest struct {
	req  Request
	done chan result // buffered so an abandoned caller never blocks the loop
}

// Broker is the single shared gateway to the NLU provider.  It serializes
// all calls through one FIFO queue and one processing goroutine, enforcing
// per-minute and per-day quota ceilings across every session.
//
// Ordering: completions arrive in strict submission order.  Latency: queue
// depth and the per-minute ceiling can impose multi-second delays, so every
// caller of Submit must apply its own timeout (via ctx) and fall back rather
// than block the conversation.
type Broker struct {
	provider Provider
	limits   Limits
	observer Observer

	mu         sync.Mutex
	queue      []*pendingRequest
	quota      QuotaWindow
	processing bool

	wake chan struct{}
	stop chan struct{}
	once sync.Once

	now func() time.Time
}

// NewBroker creates and starts a Broker.  limits may be nil, in which case
// the defaults apply; observer may be nil.
func NewBroker(provider Provider, limits Limits, observer Observer) *Broker {
	if limits == nil {
		limits = StaticLimits{PerMinute: DefaultMaxPerMinute, PerDay: DefaultMaxPerDay}
	}
	b := &Broker{
		provider: provider,
		limits:   limits,
		observer: observer,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	go b.run()
	return b
}

// Close stops the processing loop.  Queued requests are rejected with
// ErrProvider.
func (b *Broker) Close() {
	b.once.Do(func() { close(b.stop) })
}

// Submit enqueues a request and blocks until its completion or ctx expires.
//
// When the daily ceiling is already exhausted the request is rejected
// immediately with ErrQuotaExceeded instead of queueing; a caller waiting
// on a quota that cannot recover for hours would otherwise always hit its
// timeout anyway.
//
// When ctx expires the request stays queued; its eventual result is
// discarded (fire-and-forget on timeout) and the caller should proceed as if
// the call had failed.
func (b *Broker) Submit(ctx context.Context, req Request) (string, error) {
	req.EnqueuedAt = b.now()

	b.mu.Lock()
	b.quota.Roll(b.now())
	if b.quota.CountDay >= b.limits.MaxPerDay() {
		b.mu.Unlock()
		if b.observer != nil {
			b.observer.RequestRejected("daily_quota")
		}
		return "", ErrQuotaExceeded
	}
	p := &pendingRequest{req: req, done: make(chan result, 1)}
	b.queue = append(b.queue, p)
	depth := len(b.queue)
	b.mu.Unlock()

	if b.observer != nil {
		b.observer.QueueDepth(depth)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}

	select {
	case r := <-p.done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CanAccept reports whether a dispatch could proceed right now without
// waiting on either ceiling.
func (b *Broker) CanAccept() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quota.Roll(b.now())
	return b.quota.CountDay < b.limits.MaxPerDay() &&
		b.quota.CountMinute < b.limits.MaxPerMinute()
}

// Status returns a snapshot of quota usage and queue state.
func (b *Broker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quota.Roll(b.now())
	return Status{
		PerMinuteUsed:  b.quota.CountMinute,
		PerMinuteLimit: b.limits.MaxPerMinute(),
		PerDayUsed:     b.quota.CountDay,
		PerDayLimit:    b.limits.MaxPerDay(),
		QueueDepth:     len(b.queue),
		Processing:     b.processing,
	}
}

// run is the single processing loop.  One request is dequeued at a time;
// the dequeue and the counter increments happen under the same lock so at no
// instant can a dispatch exceed either ceiling.
func (b *Broker) run() {
	for {
		p, wait := b.nextDispatch()
		if p == nil {
			if wait < 0 {
				return // stopped
			}
			// Either the queue is empty (wait == 0: block on wake) or the
			// minute ceiling is reached (wait > 0: sleep until the window
			// resets, then re-check).
			if wait == 0 {
				select {
				case <-b.wake:
				case <-b.stop:
					b.drain(ErrProvider)
					return
				}
			} else {
				select {
				case <-time.After(wait):
				case <-b.stop:
					b.drain(ErrProvider)
					return
				}
			}
			continue
		}

		b.dispatch(p)
	}
}

// nextDispatch examines the queue head under the lock.
// Returns (nil, -1) when stopped, (nil, 0) when the queue is empty,
// (nil, d) when the loop must sleep d before the minute window resets, and
// (p, 0) when p was dequeued with both counters incremented.
func (b *Broker) nextDispatch() (*pendingRequest, time.Duration) {
	select {
	case <-b.stop:
		b.drain(ErrProvider)
		return nil, -1
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, 0
	}

	now := b.now()
	b.quota.Roll(now)

	if b.quota.CountDay >= b.limits.MaxPerDay() {
		// The day's quota is gone; nothing queued can succeed before the
		// next UTC midnight.  Reject everything now instead of letting the
		// callers time out one by one.
		rejected := len(b.queue)
		for _, p := range b.queue {
			p.done <- result{err: ErrQuotaExceeded}
		}
		b.queue = nil
		if b.observer != nil {
			for i := 0; i < rejected; i++ {
				b.observer.RequestRejected("daily_quota")
			}
			b.observer.QueueDepth(0)
		}
		return nil, 0
	}

	if b.quota.CountMinute >= b.limits.MaxPerMinute() {
		wait := time.Minute - now.Sub(b.quota.MinuteStart)
		if wait <= 0 {
			wait = time.Millisecond
		}
		return nil, wait
	}

	p := b.queue[0]
	b.queue = b.queue[1:]
	b.quota.CountMinute++
	b.quota.CountDay++
	b.processing = true

	if b.observer != nil {
		b.observer.QuotaUsage(b.quota.CountMinute, b.quota.CountDay)
		b.observer.QueueDepth(len(b.queue))
	}
	return p, 0
}

// dispatch executes one provider call and delivers the completion.  A
// failing request never stops the loop.
func (b *Broker) dispatch(p *pendingRequest) {
	defer func() {
		b.mu.Lock()
		b.processing = false
		b.mu.Unlock()
	}()

	text, err := b.provider.Complete(context.Background(), p.req)
	if err != nil {
		slog.Warn("nlu: provider call failed", "err", err,
			"queued_for", b.now().Sub(p.req.EnqueuedAt))
	}
	if b.observer != nil {
		if err != nil {
			b.observer.RequestRejected("provider_error")
		} else {
			b.observer.RequestDispatched()
		}
	}
	p.done <- result{text: text, err: err}
}

// drain rejects everything still queued with err.
func (b *Broker) drain(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.queue {
		p.done <- result{err: err}
	}
	b.queue = nil
}
