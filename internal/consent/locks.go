package consent

import (
	"sync"

	id "obconnect/pkg/domain"
)

// consentLocks serializes lifecycle transitions per consent. Entries are
// refcounted and removed when the last holder releases, so the map does not
// grow with the number of consents ever seen.
type consentLocks struct {
	mu      sync.Mutex
	entries map[id.ConsentID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConsentLocks() *consentLocks {
	return &consentLocks{entries: make(map[id.ConsentID]*lockEntry)}
}

// acquire blocks until the caller holds the consent's lock and returns the
// release function.
func (l *consentLocks) acquire(consentID id.ConsentID) func() {
	l.mu.Lock()
	entry, ok := l.entries[consentID]
	if !ok {
		entry = &lockEntry{}
		l.entries[consentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, consentID)
		}
		l.mu.Unlock()
	}
}
