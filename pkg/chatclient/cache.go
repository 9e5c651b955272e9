// Package chatclient is the consumer side of the message protocol: a
// paginated room cache reconciled from REST page fetches and live socket
// events, with a polling fallback while the socket is down.
package chatclient

import (
	"sync"

	"github.com/HaoyangGuo/oolong/internal/models"
)

// Page mirrors one REST page: newest-first messages and the cursor for the
// next older page, absent on the last page.
type Page struct {
	Messages   []models.Message `json:"messages"`
	NextCursor *string          `json:"nextCursor"`
}

// Cache is the per-room page cache. Pages are ordered newest page first;
// within a page messages are newest first. Regardless of the delivery order
// of REST pages and live events, every message ends up present exactly once,
// and soft-deleted messages stay in place as scrubbed rows.
type Cache struct {
	mu    sync.RWMutex
	pages []Page
	seen  map[string]struct{}
}

func NewCache() *Cache {
	return &Cache{seen: make(map[string]struct{})}
}

// AppendPage adds an older page at the end (backward fill). Messages already
// in the cache are dropped, so a page raced by a live event stays
// exactly-once.
func (c *Cache) AppendPage(p Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := p.Messages[:0:0]
	for _, m := range p.Messages {
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		c.seen[m.ID] = struct{}{}
		kept = append(kept, m)
	}
	c.pages = append(c.pages, Page{Messages: kept, NextCursor: p.NextCursor})
}

// ApplyCreate patches in a live new message: prepended to the newest page,
// or replaced in place if a refetch already delivered it.
func (c *Cache) ApplyCreate(m models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[m.ID]; ok {
		c.replaceLocked(m)
		return
	}
	c.seen[m.ID] = struct{}{}
	if len(c.pages) == 0 {
		c.pages = []Page{{Messages: []models.Message{m}}}
		return
	}
	c.pages[0].Messages = append([]models.Message{m}, c.pages[0].Messages...)
}

// ApplyDelete patches a soft-delete in place without reordering; the scrubbed
// row replaces the original. An unknown id is ignored: it lives in a page
// that was never fetched.
func (c *Cache) ApplyDelete(m models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(m)
}

func (c *Cache) replaceLocked(m models.Message) {
	for pi := range c.pages {
		for mi := range c.pages[pi].Messages {
			if c.pages[pi].Messages[mi].ID == m.ID {
				c.pages[pi].Messages[mi] = m
				return
			}
		}
	}
}

// MergeFirst reconciles a refetched first page while the socket is down:
// known messages are replaced in place (picking up deletes), unknown ones are
// prepended newest-first.
func (c *Cache) MergeFirst(p Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		for _, m := range p.Messages {
			c.seen[m.ID] = struct{}{}
		}
		c.pages = []Page{p}
		return
	}
	var fresh []models.Message
	for _, m := range p.Messages {
		if _, ok := c.seen[m.ID]; ok {
			c.replaceLocked(m)
			continue
		}
		c.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) > 0 {
		c.pages[0].Messages = append(fresh, c.pages[0].Messages...)
	}
}

// Messages flattens the cache newest-first.
func (c *Cache) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Message
	for _, p := range c.pages {
		out = append(out, p.Messages...)
	}
	return out
}

// NextCursor is the cursor of the oldest fetched page, nil when no further
// page is believed to exist.
func (c *Cache) NextCursor() *string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.pages) == 0 {
		return nil
	}
	return c.pages[len(c.pages)-1].NextCursor
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, p := range c.pages {
		n += len(p.Messages)
	}
	return n
}
