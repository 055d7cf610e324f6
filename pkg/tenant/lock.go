package tenant

import (
	"strconv"
	"sync"
)

// Locker hands out one mutex per key. Entries are dropped once nobody
// holds or waits for them, so the map does not grow with the tenant count.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// LockKey is the Locker key guarding schema changes of one tenant
// database.
func LockKey(tenantID int64) string {
	return "tenant:" + strconv.FormatInt(tenantID, 10)
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: map[string]*keyLock{}}
}

func (l *Locker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *Locker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock blocks until key is free and returns the matching unlock.
func (l *Locker) Lock(key string) (unlock func()) {
	kl := l.acquire(key)
	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.release(key, kl)
	}
}

// TryLock takes key if it is free.
func (l *Locker) TryLock(key string) (unlock func(), ok bool) {
	kl := l.acquire(key)
	if !kl.mu.TryLock() {
		l.release(key, kl)
		return nil, false
	}
	return func() {
		kl.mu.Unlock()
		l.release(key, kl)
	}, true
}

// Len returns the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
