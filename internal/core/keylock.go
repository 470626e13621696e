package core

// keylock.go serializes replacements that target the same replace key.
//
// Each key gets a one-slot semaphore that lives only while someone holds or
// waits on it. Different keys never block each other. WaitForDrain lets the
// server finish in-flight replacements before shutting down.

import (
	"context"
	"sync"
	"time"
)

type keySlot struct {
	sem     chan struct{}
	waiters int // holders plus goroutines blocked in Acquire
}

// KeyLock is a set of mutexes indexed by string key.
type KeyLock struct {
	mu     sync.Mutex
	slots  map[string]*keySlot
	active int
}

// NewKeyLock returns an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{slots: make(map[string]*keySlot)}
}

// Acquire blocks until the lock for key is held or ctx is done.
// The caller MUST call Release(key) after a nil return (use defer).
func (l *KeyLock) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &keySlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.forget(key, slot)
		l.mu.Unlock()
		return ctx.Err()
	}
}

// Release unlocks key. Must be called exactly once per successful Acquire.
func (l *KeyLock) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		return
	}
	<-slot.sem
	l.active--
	l.forget(key, slot)
}

// forget drops one waiter and deletes the slot once nobody uses it. l.mu must be held.
func (l *KeyLock) forget(key string, slot *keySlot) {
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, key)
	}
}

// ActiveCount returns the number of keys currently held.
func (l *KeyLock) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// WaitForDrain blocks until no key is held or ctx is cancelled.
func (l *KeyLock) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
