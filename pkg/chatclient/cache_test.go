package chatclient

import (
	"testing"

	"github.com/HaoyangGuo/oolong/internal/models"
)

func msg(id string) models.Message {
	return models.Message{ID: id, Content: "message " + id}
}

func page(cursor string, ids ...string) Page {
	p := Page{}
	for _, id := range ids {
		p.Messages = append(p.Messages, msg(id))
	}
	if cursor != "" {
		p.NextCursor = &cursor
	}
	return p
}

func ids(c *Cache) []string {
	var out []string
	for _, m := range c.Messages() {
		out = append(out, m.ID)
	}
	return out
}

func assertOrder(t *testing.T, c *Cache, want ...string) {
	t.Helper()
	got := ids(c)
	if len(got) != len(want) {
		t.Fatalf("expected %d messages %v, got %v", len(want), want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestCache_BackwardFill(t *testing.T) {
	c := NewCache()
	c.AppendPage(page("m4", "m6", "m5", "m4"))
	c.AppendPage(page("", "m3", "m2", "m1"))

	assertOrder(t, c, "m6", "m5", "m4", "m3", "m2", "m1")
	if c.NextCursor() != nil {
		t.Errorf("expected terminal cursor, got %v", *c.NextCursor())
	}
}

func TestCache_NextCursorTracksOldestPage(t *testing.T) {
	c := NewCache()
	if c.NextCursor() != nil {
		t.Error("expected nil cursor on an empty cache")
	}
	c.AppendPage(page("m4", "m6", "m5", "m4"))
	if cur := c.NextCursor(); cur == nil || *cur != "m4" {
		t.Errorf("expected cursor m4, got %v", cur)
	}
}

func TestCache_ApplyCreate(t *testing.T) {
	c := NewCache()

	t.Run("into empty cache", func(t *testing.T) {
		c.ApplyCreate(msg("m1"))
		assertOrder(t, c, "m1")
	})

	t.Run("prepends to the newest page", func(t *testing.T) {
		c.ApplyCreate(msg("m2"))
		assertOrder(t, c, "m2", "m1")
	})

	t.Run("exactly once against a racing refetch", func(t *testing.T) {
		// A page fetched after the live event carries the same message; the
		// page copy must not duplicate it.
		c.AppendPage(page("", "m2", "m1", "m0"))
		assertOrder(t, c, "m2", "m1", "m0")

		// And the reverse race: a live event for a message already delivered
		// by a page replaces in place instead of prepending.
		c.ApplyCreate(msg("m0"))
		assertOrder(t, c, "m2", "m1", "m0")
	})
}

func TestCache_ApplyDelete(t *testing.T) {
	c := NewCache()
	c.AppendPage(page("", "m3", "m2", "m1"))

	scrubbed := msg("m2")
	scrubbed.Content = models.DeletedPlaceholder
	scrubbed.Deleted = true
	c.ApplyDelete(scrubbed)

	// Position is unchanged; only the row content is.
	assertOrder(t, c, "m3", "m2", "m1")
	got := c.Messages()[1]
	if !got.Deleted || got.Content != models.DeletedPlaceholder {
		t.Errorf("expected scrubbed row in place, got %+v", got)
	}

	// A delete for an unfetched page is silently ignored.
	c.ApplyDelete(msg("never-fetched"))
	assertOrder(t, c, "m3", "m2", "m1")
	if c.Len() != 3 {
		t.Errorf("expected 3 cached messages, got %d", c.Len())
	}
}

func TestCache_MergeFirst(t *testing.T) {
	t.Run("into empty cache", func(t *testing.T) {
		c := NewCache()
		c.MergeFirst(page("m1", "m3", "m2", "m1"))
		assertOrder(t, c, "m3", "m2", "m1")
		if cur := c.NextCursor(); cur == nil || *cur != "m1" {
			t.Errorf("expected cursor m1, got %v", cur)
		}
	})

	t.Run("reconciles a missed create and delete", func(t *testing.T) {
		c := NewCache()
		c.AppendPage(page("", "m2", "m1"))

		// While disconnected, m3 arrived and m1 was deleted.
		deleted := msg("m1")
		deleted.Deleted = true
		deleted.Content = models.DeletedPlaceholder
		c.MergeFirst(Page{Messages: []models.Message{msg("m3"), msg("m2"), deleted}})

		assertOrder(t, c, "m3", "m2", "m1")
		got := c.Messages()[2]
		if !got.Deleted {
			t.Errorf("expected the missed delete applied in place, got %+v", got)
		}
	})

	t.Run("repeat polls stay exactly-once", func(t *testing.T) {
		c := NewCache()
		c.MergeFirst(page("", "m2", "m1"))
		c.MergeFirst(page("", "m2", "m1"))
		assertOrder(t, c, "m2", "m1")
	})
}
