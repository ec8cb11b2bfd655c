package repository

import "sync"

// listingLocks hands out one mutex per listing id. Entries are dropped once
// nobody holds or waits on them.
type listingLocks struct {
	mu    sync.Mutex
	locks map[string]*listingLock
}

type listingLock struct {
	mu   sync.Mutex
	refs int
}

func newListingLocks() *listingLocks {
	return &listingLocks{locks: make(map[string]*listingLock)}
}

// Lock blocks until listingID is free and returns the matching unlock func.
func (l *listingLocks) Lock(listingID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[listingID]
	if !ok {
		lk = &listingLock{}
		l.locks[listingID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, listingID)
		}
		l.mu.Unlock()
	}
}

func (l *listingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
