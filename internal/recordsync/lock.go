package recordsync

import "sync"

type lockKey struct {
	owner     string
	studentID string
}

type lockEntry struct {
	mutex sync.Mutex
	refs  int
}

// Locker serializes syncs of the same student. Entries are dropped once nobody holds or
// waits on them.
type Locker struct {
	mutex   sync.Mutex
	entries map[lockKey]*lockEntry
}

func NewLocker() *Locker {
	return &Locker{entries: map[lockKey]*lockEntry{}}
}

// Lock blocks until the student is free and returns the matching unlock.
func (l *Locker) Lock(owner, studentID string) (unlock func()) {
	key := lockKey{owner: owner, studentID: studentID}

	l.mutex.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mutex.Unlock()

	entry.mutex.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mutex.Unlock()

			l.mutex.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.entries, key)
			}
			l.mutex.Unlock()
		})
	}
}

func (l *Locker) held() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.entries)
}
