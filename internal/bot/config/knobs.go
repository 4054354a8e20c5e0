package config

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// knobTTL is how long a read value stays cached.  Operator changes take
// effect within this window without any restart.
const knobTTL = 15 * time.Second

// Knobs exposes typed, cached access to the hot-readable tuning keys.  The
// zero-value fallbacks live with the callers (confidence policy, broker
// limits); Knobs returns the fallback when the key is unset or unparsable.
type Knobs struct {
	store Store

	mu    sync.Mutex
	cache map[string]knobEntry
}

type knobEntry struct {
	value   string
	ok      bool
	fetched time.Time
}

// NewKnobs wraps store with a small read cache.
func NewKnobs(store Store) *Knobs {
	return &Knobs{store: store, cache: make(map[string]knobEntry)}
}

// get returns the raw value and whether it exists, consulting the cache
// first.  Store errors read as "unset" so a database hiccup never breaks a
// conversation turn.
func (k *Knobs) get(key string) (string, bool) {
	k.mu.Lock()
	e, cached := k.cache[key]
	k.mu.Unlock()
	if cached && time.Since(e.fetched) < knobTTL {
		return e.value, e.ok
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := k.store.Get(ctx, key)
	ok := err == nil

	k.mu.Lock()
	k.cache[key] = knobEntry{value: value, ok: ok, fetched: time.Now()}
	k.mu.Unlock()
	return value, ok
}

// Float returns the key as a float64, or fallback.
func (k *Knobs) Float(key string, fallback float64) float64 {
	if raw, ok := k.get(key); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

// Int returns the key as an int, or fallback.
func (k *Knobs) Int(key string, fallback int) int {
	if raw, ok := k.get(key); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

// Duration returns the key parsed with time.ParseDuration, or fallback.
func (k *Knobs) Duration(key string, fallback time.Duration) time.Duration {
	if raw, ok := k.get(key); ok {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
