package rates

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryTier is the in-process cache tier. current and historical records live in separate
// LRUs so they can expire on different schedules.
type memoryTier struct {
	current    *expirable.LRU[string, Record]
	historical *expirable.LRU[string, Record]
}

func newMemoryTier(size int, currentTTL, historicalTTL time.Duration) memoryTier {
	return memoryTier{
		current:    expirable.NewLRU[string, Record](size, nil, currentTTL),
		historical: expirable.NewLRU[string, Record](size, nil, historicalTTL),
	}
}

func (m memoryTier) lru(kind Kind) *expirable.LRU[string, Record] {
	if kind == KIND_CURRENT {
		return m.current
	}
	return m.historical
}

func (m memoryTier) get(kind Kind, key string) (Record, bool) {
	return m.lru(kind).Get(key)
}

func (m memoryTier) set(record Record) {
	m.lru(record.Kind).Add(record.Key(), record)
}
