// Package memory keeps a bounded in-process working window of recent
// dialogue turns per conversation. It is an optimization layer: losing a
// window only costs a re-read from Postgres.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache bounds, applied on every append and warm.
const (
	DefaultMaxTurns  = 20
	DefaultCharLimit = 8000
)

type window struct {
	mu         sync.Mutex
	turns      []Turn
	lastActive time.Time
}

// InProcessCache implements ConversationCache with per-conversation locking.
type InProcessCache struct {
	logger    *slog.Logger
	maxTurns  int
	charLimit int

	mu      sync.RWMutex
	windows map[string]*window
}

var _ ConversationCache = (*InProcessCache)(nil)

// NewInProcessCache creates a cache bounded to maxTurns turns and charLimit
// total content characters per conversation. Zero values select defaults.
func NewInProcessCache(log *slog.Logger, maxTurns, charLimit int) *InProcessCache {
	if log == nil {
		log = slog.Default()
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if charLimit <= 0 {
		charLimit = DefaultCharLimit
	}
	return &InProcessCache{
		logger:    log.With(slog.String("service", "memory")),
		maxTurns:  maxTurns,
		charLimit: charLimit,
		windows:   make(map[string]*window),
	}
}

func (c *InProcessCache) getWindow(conversationID string, create bool) *window {
	c.mu.RLock()
	w := c.windows[conversationID]
	c.mu.RUnlock()
	if w != nil || !create {
		return w
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if w := c.windows[conversationID]; w != nil {
		return w
	}
	w = &window{}
	c.windows[conversationID] = w
	return w
}

// Window returns the cached turns oldest-first, or ok=false on a cold cache.
func (c *InProcessCache) Window(_ context.Context, conversationID string) ([]Turn, bool) {
	w := c.getWindow(conversationID, false)
	if w == nil {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out, true
}

// Append adds a turn and trims the window to its bounds.
func (c *InProcessCache) Append(_ context.Context, conversationID string, turn Turn) {
	w := c.getWindow(conversationID, true)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	w.turns = append(w.turns, turn)
	w.turns = Trim(w.turns, c.maxTurns, c.charLimit)
}

// Warm seeds a window from durable history, replacing any existing content.
func (c *InProcessCache) Warm(_ context.Context, conversationID string, turns []Turn) {
	w := c.getWindow(conversationID, true)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
	w.turns = Trim(append([]Turn(nil), turns...), c.maxTurns, c.charLimit)
}

// Evict drops a conversation's window.
func (c *InProcessCache) Evict(conversationID string) {
	c.mu.Lock()
	delete(c.windows, conversationID)
	c.mu.Unlock()
}

// SweepIdle evicts windows idle longer than ttl and returns how many were
// dropped. Run periodically so resolved conversations do not pin memory.
func (c *InProcessCache) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id, w := range c.windows {
		w.mu.Lock()
		idle := w.lastActive.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(c.windows, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("evicted idle windows", slog.Int("count", evicted))
	}
	return evicted
}

// Trim drops the oldest turns until the window fits both the turn count and
// the total character budget. The newest turn always survives.
func Trim(turns []Turn, maxTurns, charLimit int) []Turn {
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	total := 0
	for _, t := range turns {
		total += len(t.Content)
	}
	for total > charLimit && len(turns) > 1 {
		total -= len(turns[0].Content)
		turns = turns[1:]
	}
	return turns
}
