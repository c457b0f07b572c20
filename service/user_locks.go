package service

import (
	"context"
	"sync"
)

// userLocks serializes state-changing broker operations per application user
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock waits until userID's lock is held or ctx is done, and returns the release function
func (l *userLocks) lock(ctx context.Context, userID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
		return func() {
			<-ul.sem
			l.unref(userID, ul)
		}, nil
	case <-ctx.Done():
		l.unref(userID, ul)
		return nil, ctx.Err()
	}
}

func (l *userLocks) unref(userID string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
}
