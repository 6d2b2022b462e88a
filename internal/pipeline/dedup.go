package pipeline

import (
	"strings"
	"sync"
)

// dedupCapacity bounds the remembered external message ids per channel.
const dedupCapacity = 512

// Dedup remembers recently seen external message ids per channel so
// redelivered webhooks do not double-process a message. It is a best-effort
// in-process filter; the conversation resolver's unique constraint remains
// the correctness backstop.
type Dedup struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]map[string]struct{} // channel id -> message ids
	order    map[string][]string            // channel id -> FIFO of ids
}

// NewDedup creates a dedup filter with the given per-channel capacity.
// capacity <= 0 selects the default.
func NewDedup(capacity int) *Dedup {
	if capacity <= 0 {
		capacity = dedupCapacity
	}
	return &Dedup{
		capacity: capacity,
		seen:     make(map[string]map[string]struct{}),
		order:    make(map[string][]string),
	}
}

// Seen reports whether the id was already observed on the channel, recording
// it either way. Blank ids are never deduplicated.
func (d *Dedup) Seen(channelID, externalMessageID string) bool {
	externalMessageID = strings.TrimSpace(externalMessageID)
	if externalMessageID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := d.seen[channelID]
	if ids == nil {
		ids = make(map[string]struct{})
		d.seen[channelID] = ids
	}
	if _, ok := ids[externalMessageID]; ok {
		return true
	}
	ids[externalMessageID] = struct{}{}
	d.order[channelID] = append(d.order[channelID], externalMessageID)
	if len(d.order[channelID]) > d.capacity {
		oldest := d.order[channelID][0]
		d.order[channelID] = d.order[channelID][1:]
		delete(ids, oldest)
	}
	return false
}

// Forget drops a recorded id so a platform redelivery gets processed again.
// Called when a message fails; redelivery is the only retry mechanism.
func (d *Dedup) Forget(channelID, externalMessageID string) {
	externalMessageID = strings.TrimSpace(externalMessageID)
	if externalMessageID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := d.seen[channelID]
	if _, ok := ids[externalMessageID]; !ok {
		return
	}
	delete(ids, externalMessageID)
	order := d.order[channelID]
	for i, id := range order {
		if id == externalMessageID {
			d.order[channelID] = append(order[:i], order[i+1:]...)
			break
		}
	}
}
