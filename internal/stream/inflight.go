package stream

import (
	"context"
	"sync"
)

// Inflight tracks at most one delivery per conversation. Starting a new
// delivery for a key cancels the one already running.
type Inflight struct {
	mu      sync.Mutex
	seq     uint64
	running map[string]inflightEntry
}

type inflightEntry struct {
	seq    uint64
	cancel context.CancelFunc
}

// NewInflight creates an empty tracker.
func NewInflight() *Inflight {
	return &Inflight{running: make(map[string]inflightEntry)}
}

// Begin cancels any delivery registered under key and returns a context
// for the new one. The returned func must be called when delivery ends.
func (f *Inflight) Begin(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	f.mu.Lock()
	if prev, ok := f.running[key]; ok {
		prev.cancel()
	}
	f.seq++
	seq := f.seq
	f.running[key] = inflightEntry{seq: seq, cancel: cancel}
	f.mu.Unlock()

	return ctx, func() {
		cancel()
		f.mu.Lock()
		if cur, ok := f.running[key]; ok && cur.seq == seq {
			delete(f.running, key)
		}
		f.mu.Unlock()
	}
}

// Cancel stops the delivery registered under key, if any.
func (f *Inflight) Cancel(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.running[key]
	if !ok {
		return false
	}
	cur.cancel()
	delete(f.running, key)
	return true
}

// Active returns the number of running deliveries.
func (f *Inflight) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.running)
}
