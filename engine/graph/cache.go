package graph

import "sync"

// TxCache memoises attributes derived from relationship properties, such as
// parsed trip-id lists. It belongs to exactly one transaction.
type TxCache struct {
	mu    sync.Mutex
	trips map[RelationshipID][]TripID
	hits  int
	miss  int
}

// NewTxCache creates an empty cache.
func NewTxCache() *TxCache {
	return &TxCache{trips: make(map[RelationshipID][]TripID)}
}

// TripIDs returns the cached trip list for id, computing it with parse on
// the first request. Parse errors are not cached.
func (c *TxCache) TripIDs(id RelationshipID, parse func() ([]TripID, error)) ([]TripID, error) {
	c.mu.Lock()
	if ids, ok := c.trips[id]; ok {
		c.hits++
		c.mu.Unlock()
		return ids, nil
	}
	c.miss++
	c.mu.Unlock()

	ids, err := parse()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.trips[id] = ids
	c.mu.Unlock()
	return ids, nil
}

// Invalidate drops every cached entry.
func (c *TxCache) Invalidate() {
	c.mu.Lock()
	c.trips = make(map[RelationshipID][]TripID)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *TxCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trips)
}

// Stats returns cache hits and misses since creation.
func (c *TxCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.miss
}
