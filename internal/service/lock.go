package service

import "sync"

// roomLocks hands out one mutex per room id. Entries are reference counted
// and dropped when the last holder releases, so idle rooms cost nothing.
type roomLocks struct {
	mu      sync.Mutex
	entries map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{entries: make(map[string]*roomLock)}
}

// lock blocks until the caller holds the room's mutex and returns the release func
func (l *roomLocks) lock(roomID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[roomID]
	if !ok {
		entry = &roomLock{}
		l.entries[roomID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, roomID)
		}
		l.mu.Unlock()
	}
}

// size returns the number of rooms with a live lock entry
func (l *roomLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
