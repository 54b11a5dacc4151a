package session

import "sync"

// Locker serializes read-modify-write cycles per client identifier.
type Locker interface {
	Lock(clientID string) (unlock func())
}

// KeyedLocker hands out one mutex per key and drops it once nobody holds or waits on it.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker constructs an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is free and returns the matching unlock.
func (l *KeyedLocker) Lock(clientID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[clientID]
	if !ok {
		entry = &keyedLock{}
		l.locks[clientID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, clientID)
		}
		l.mu.Unlock()
	}
}

func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// NopLocker performs no locking; concurrent requests for one client may interleave.
type NopLocker struct{}

// Lock returns immediately.
func (NopLocker) Lock(string) func() { return func() {} }

var (
	_ Locker = (*KeyedLocker)(nil)
	_ Locker = NopLocker{}
)
