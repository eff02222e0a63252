package streamcache

import "sort"

// Stats is a point-in-time view of the cache.
type Stats struct {
	TotalStreams   int           `json:"totalStreams"`
	ActiveSessions int           `json:"activeSessions"`
	Streams        []StreamStats `json:"streams"`
}

// StreamStats describes one buffered stream.
type StreamStats struct {
	StreamID     string `json:"streamId"`
	SessionID    string `json:"sessionId"`
	Subscribers  int    `json:"subscribers"`
	CachedChunks int    `json:"cachedChunks"`
	AgeMs        int64  `json:"ageMs"`
}

// Stats reports the cache's current contents, oldest stream first.
func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	sessions := len(c.active)
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	stats := Stats{
		TotalStreams:   len(entries),
		ActiveSessions: sessions,
		Streams:        make([]StreamStats, 0, len(entries)),
	}
	for _, e := range entries {
		stats.Streams = append(stats.Streams, StreamStats{
			StreamID:     e.streamID,
			SessionID:    e.sessionID,
			Subscribers:  int(e.subscribers.Load()),
			CachedChunks: e.len(),
			AgeMs:        now.Sub(e.createdAt).Milliseconds(),
		})
	}
	return stats
}
