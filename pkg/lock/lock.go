// Package lock serializes work on one artifact slot. A slot is identified by
// its directory and canonical file name, so an enabled and a disabled copy of
// the same artifact share one lock.
package lock

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/glorpus-work/modsync/pkg/model"
)

// Keyed hands out one mutex per key. Entries are dropped once nobody holds or
// waits for them.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// New creates an empty Keyed lock.
func New() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Key returns the lock key for an artifact path in either toggle state.
func Key(path string) string {
	canonical, _ := model.SplitName(path)
	return filepath.Join(filepath.Clean(filepath.Dir(path)), canonical)
}

// Lock blocks until the slot for key is free or ctx is done. The returned
// function releases the slot and must be called exactly once.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *Keyed) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Pending returns how many callers hold or wait for key.
func (k *Keyed) Pending(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s, ok := k.slots[key]; ok {
		return s.refs
	}
	return 0
}

// Len returns the number of live slots.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
