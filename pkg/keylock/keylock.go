// Package keylock serializes work on inventory rows inside one process.
package keylock

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Key identifies one (part, location) row.
type Key struct {
	PartID     string
	LocationID string
}

func (k Key) less(o Key) bool {
	if k.PartID != o.PartID {
		return k.PartID < o.PartID
	}
	return k.LocationID < o.LocationID
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker hands out per-key exclusive locks. Entries are dropped once no
// caller holds or waits on them.
type Locker struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[Key]*entry)}
}

// Lock acquires every key in sorted order and returns the release func.
// Duplicate keys are collapsed. On cancellation nothing stays held.
func (l *Locker) Lock(ctx context.Context, keys ...Key) (func(), error) {
	ordered := Sorted(keys...)

	acquired := make([]Key, 0, len(ordered))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.unlock(acquired[i])
		}
	}

	for _, key := range ordered {
		e := l.ref(key)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			l.unref(key)
			release()
			return nil, err
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// Sorted returns keys deduplicated in acquisition order.
func Sorted(keys ...Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (l *Locker) ref(key Key) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Locker) unlock(key Key) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	e.sem.Release(1)
	l.unref(key)
}

// size reports tracked entries; used by tests.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
