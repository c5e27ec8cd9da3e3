// Package services – advisory locks
//
// This file implements the per-identifier advisory locks that uphold the
// store-side concurrency contract: at most one in-flight mutation per set of
// overlapping identifiers. Lock entries are created on demand in a
// mutex-guarded map and reference-counted so idle entries are removed as soon
// as the last holder releases them, keeping memory bounded.
//
// Notes:
//   - The locks are process-local, matching the single-logical-store
//     assumption. A horizontally scaled deployment would need a distributed
//     lock (or serializable store transactions with retry) instead.
package services

import "sync"

// lockEntry holds one identifier's mutex plus its current holder count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// identifierLocks is a keyed advisory-lock table. Safe for concurrent use.
type identifierLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newIdentifierLocks() *identifierLocks {
	return &identifierLocks{entries: make(map[string]*lockEntry)}
}

// acquire locks every key in the given order and returns a release function.
// Callers must pass keys in a globally consistent order (sorted) so that
// overlapping acquisitions cannot deadlock.
func (l *identifierLocks) acquire(keys []string) func() {
	held := make([]*lockEntry, 0, len(keys))

	for _, k := range keys {
		l.mu.Lock()
		e, ok := l.entries[k]
		if !ok {
			e = &lockEntry{}
			l.entries[k] = e
		}
		e.refs++
		l.mu.Unlock()

		e.mu.Lock()
		held = append(held, e)
	}

	keysCopy := append([]string(nil), keys...)
	return func() {
		// Release in reverse acquisition order.
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			l.mu.Lock()
			e := held[i]
			e.refs--
			if e.refs == 0 {
				delete(l.entries, keysCopy[i])
			}
			l.mu.Unlock()
		}
	}
}
