package session

import (
	"sync"

	"github.com/confhub/confbot/internal/domain"
)

// UpdateCache stashes, per recipient, the event ids matched by the most
// recent updated-event notification cycle. Each cycle overwrites a
// recipient's entry; drill-downs therefore only ever see the latest cycle's
// matches.
type UpdateCache struct {
	mu      sync.RWMutex
	matches map[int64][]int64
}

func NewUpdateCache() *UpdateCache {
	return &UpdateCache{matches: make(map[int64][]int64)}
}

// Put overwrites the matched ids for chatID.
func (c *UpdateCache) Put(chatID int64, eventIDs []int64) {
	ids := make([]int64, len(eventIDs))
	copy(ids, eventIDs)

	c.mu.Lock()
	c.matches[chatID] = ids
	c.mu.Unlock()
}

// Get returns the ids stashed for chatID by the last cycle, or
// domain.ErrNotFound if no cycle has notified this user yet.
func (c *UpdateCache) Get(chatID int64) ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids, ok := c.matches[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}
