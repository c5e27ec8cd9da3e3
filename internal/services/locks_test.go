package services

import (
	"sync"
	"testing"
	"time"
)

func TestIdentifierLocks_MutualExclusion(t *testing.T) {
	l := newIdentifierLocks()

	release := l.acquire([]string{"email:a@x.com", "phone:111"})

	acquired := make(chan struct{})
	go func() {
		r := l.acquire([]string{"phone:111"})
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatalf("overlapping key must block until release")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("blocked acquire never proceeded after release")
	}
}

func TestIdentifierLocks_DisjointKeysDoNotBlock(t *testing.T) {
	l := newIdentifierLocks()

	r1 := l.acquire([]string{"email:a@x.com"})
	defer r1()

	done := make(chan struct{})
	go func() {
		r2 := l.acquire([]string{"email:b@x.com"})
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("disjoint keys must not contend")
	}
}

func TestIdentifierLocks_EntriesAreReclaimed(t *testing.T) {
	l := newIdentifierLocks()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := l.acquire([]string{"email:a@x.com", "phone:111"})
			r()
		}()
	}
	wg.Wait()

	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected all lock entries reclaimed, %d left", n)
	}
}
