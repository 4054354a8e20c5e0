package nlu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedProvider blocks each Complete call until released and records the
// order in which prompts were served.
type gatedProvider struct {
	release chan struct{}

	mu     sync.Mutex
	served []string
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{release: make(chan struct{})}
}

func (p *gatedProvider) Complete(ctx context.Context, req Request) (string, error) {
	<-p.release
	p.mu.Lock()
	p.served = append(p.served, req.UserPrompt)
	p.mu.Unlock()
	return "ok:" + req.UserPrompt, nil
}

func (p *gatedProvider) servedOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.served...)
}

func TestQuotaWindowRoll(t *testing.T) {
	start := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	q := QuotaWindow{}
	q.Roll(start)
	q.CountMinute = 5
	q.CountDay = 40

	// 59 seconds in: nothing resets.
	q.Roll(start.Add(59 * time.Second))
	if q.CountMinute != 5 || q.CountDay != 40 {
		t.Fatalf("counters reset too early: minute=%d day=%d", q.CountMinute, q.CountDay)
	}

	// Exactly 60 seconds: minute resets, day does not.
	q.Roll(start.Add(60 * time.Second))
	if q.CountMinute != 0 {
		t.Fatalf("minute counter not reset at 60s: %d", q.CountMinute)
	}
	if q.CountDay != 40 {
		t.Fatalf("day counter reset with minute window: %d", q.CountDay)
	}

	// UTC date change resets the day counter.
	q.CountDay = 40
	q.Roll(start.Add(24 * time.Hour))
	if q.CountDay != 0 {
		t.Fatalf("day counter not reset on date change: %d", q.CountDay)
	}
}

func TestBrokerServesInSubmissionOrder(t *testing.T) {
	provider := newGatedProvider()
	b := NewBroker(provider, StaticLimits{PerMinute: 100, PerDay: 100}, nil)
	defer b.Close()

	var wg sync.WaitGroup
	submit := func(prompt string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Submit(context.Background(), Request{UserPrompt: prompt}); err != nil {
				t.Errorf("submit %q: %v", prompt, err)
			}
		}()
	}

	waitDepth := func(depth int) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if b.Status().QueueDepth == depth {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Fatalf("queue never reached depth %d", depth)
	}

	// First request gets dequeued immediately and blocks in the provider;
	// the rest stack up behind it in submission order.
	submit("first")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !b.Status().Processing {
		time.Sleep(time.Millisecond)
	}
	submit("second")
	waitDepth(1)
	submit("third")
	waitDepth(2)

	close(provider.release)
	wg.Wait()

	got := provider.servedOrder()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("served %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("served out of order: %v", got)
		}
	}
}

func TestBrokerDailyQuotaFastReject(t *testing.T) {
	provider := newGatedProvider()
	close(provider.release)
	b := NewBroker(provider, StaticLimits{PerMinute: 100, PerDay: 1}, nil)
	defer b.Close()

	if _, err := b.Submit(context.Background(), Request{UserPrompt: "only"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// The day ceiling is spent: rejection must be immediate, not a timeout.
	start := time.Now()
	_, err := b.Submit(context.Background(), Request{UserPrompt: "over"})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("want ErrQuotaExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("rejection took %v; should be immediate", elapsed)
	}

	if b.CanAccept() {
		t.Fatal("CanAccept should be false with the daily quota exhausted")
	}
}

func TestBrokerCallerTimeoutDoesNotStallLoop(t *testing.T) {
	provider := newGatedProvider()
	b := NewBroker(provider, StaticLimits{PerMinute: 100, PerDay: 100}, nil)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.Submit(ctx, Request{UserPrompt: "abandoned"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}

	// The abandoned request's eventual completion is discarded; the next
	// caller is still served.
	close(provider.release)
	text, err := b.Submit(context.Background(), Request{UserPrompt: "next"})
	if err != nil {
		t.Fatalf("submit after abandon: %v", err)
	}
	if text != "ok:next" {
		t.Fatalf("got %q", text)
	}
}

func TestBrokerMinuteWindowReset(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))
	provider := newGatedProvider()
	close(provider.release)
	b := NewBroker(provider, StaticLimits{PerMinute: 1, PerDay: 100}, nil)
	b.now = clock.Now
	defer b.Close()

	if _, err := b.Submit(context.Background(), Request{UserPrompt: "one"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if b.CanAccept() {
		t.Fatal("CanAccept should be false at the minute ceiling")
	}

	// 59s in: still capped.  At 61s the window has rolled.
	clock.Advance(59 * time.Second)
	if b.CanAccept() {
		t.Fatal("minute window rolled too early")
	}
	clock.Advance(2 * time.Second)
	if !b.CanAccept() {
		t.Fatal("minute window did not roll after 60s")
	}
}
