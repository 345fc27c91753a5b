package cooldown

import (
	"sync"
	"time"
)

type memoryEntry struct {
	expiresAt time.Time
}

// memoryLedger is the fallback cooldown store used while redis is
// unreachable. Bounded; the entry closest to expiry is evicted first.
type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func newMemoryLedger(maxSize int) *memoryLedger {
	ml := &memoryLedger{
		entries: make(map[string]memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go ml.cleanup()
	return ml
}

// Close terminates the cleanup goroutine. Safe to call more than once.
func (ml *memoryLedger) Close() {
	ml.stopOnce.Do(func() { close(ml.stop) })
}

// Take marks key as on cooldown for ttl. If the key is already active,
// it returns the remaining wait and false.
func (ml *memoryLedger) Take(key string, ttl time.Duration) (time.Duration, bool) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	if entry, ok := ml.entries[key]; ok && now.Before(entry.expiresAt) {
		return entry.expiresAt.Sub(now), false
	}

	if len(ml.entries) >= ml.maxSize {
		ml.evictOldest()
	}

	ml.entries[key] = memoryEntry{expiresAt: now.Add(ttl)}
	return 0, true
}

func (ml *memoryLedger) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range ml.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.expiresAt
		}
	}

	if oldestKey != "" {
		delete(ml.entries, oldestKey)
	}
}

func (ml *memoryLedger) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ml.stop:
			return
		case <-ticker.C:
			ml.mu.Lock()
			now := ml.now()
			for key, entry := range ml.entries {
				if now.After(entry.expiresAt) {
					delete(ml.entries, key)
				}
			}
			ml.mu.Unlock()
		}
	}
}
