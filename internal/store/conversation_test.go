package store

import (
	"context"
	"errors"
	"testing"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
)

func TestConversationStore_FindOrCreate(t *testing.T) {
	st := setupStore(t)
	f := seedRoom(t, st, "alice")
	bob := joinServer(t, st, f, "bob", models.RoleGuest)
	ctx := context.Background()

	conv, err := st.Conversations.FindOrCreate(ctx, f.Member.ID, bob.ID)
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}

	t.Run("reverse ordering resolves to the same row", func(t *testing.T) {
		again, err := st.Conversations.FindOrCreate(ctx, bob.ID, f.Member.ID)
		if err != nil {
			t.Fatalf("FindOrCreate() error = %v", err)
		}
		if again.ID != conv.ID {
			t.Errorf("expected conversation %s, got %s", conv.ID, again.ID)
		}
		var count int64
		if err := st.db.Model(&models.Conversation{}).Count(&count).Error; err != nil {
			t.Fatalf("failed to count conversations: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly one conversation row, got %d", count)
		}
	})

	t.Run("pair is stored canonically", func(t *testing.T) {
		var row models.Conversation
		if err := st.db.First(&row, "id = ?", conv.ID).Error; err != nil {
			t.Fatalf("failed to load conversation: %v", err)
		}
		if row.MemberOneID > row.MemberTwoID {
			t.Errorf("expected member pair in canonical order, got (%s, %s)", row.MemberOneID, row.MemberTwoID)
		}
	})

	t.Run("member joins preloaded", func(t *testing.T) {
		got := map[string]bool{
			conv.MemberOne.Profile.Username: true,
			conv.MemberTwo.Profile.Username: true,
		}
		if !got["alice"] || !got["bob"] {
			t.Errorf("expected both profiles joined, got %v", got)
		}
	})
}

func TestConversationStore_FindByMembers(t *testing.T) {
	st := setupStore(t)
	f := seedRoom(t, st, "alice")
	bob := joinServer(t, st, f, "bob", models.RoleGuest)
	ctx := context.Background()

	if _, err := st.Conversations.FindByMembers(ctx, f.Member.ID, bob.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound before initiation, got %v", err)
	}

	conv, err := st.Conversations.FindOrCreate(ctx, f.Member.ID, bob.ID)
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}
	for _, pair := range [][2]string{{f.Member.ID, bob.ID}, {bob.ID, f.Member.ID}} {
		found, err := st.Conversations.FindByMembers(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("FindByMembers(%s, %s) error = %v", pair[0], pair[1], err)
		}
		if found.ID != conv.ID {
			t.Errorf("expected conversation %s, got %s", conv.ID, found.ID)
		}
	}
}

func TestConversationStore_FindForProfile(t *testing.T) {
	st := setupStore(t)
	f := seedRoom(t, st, "alice")
	bob := joinServer(t, st, f, "bob", models.RoleGuest)
	eve := joinServer(t, st, f, "eve", models.RoleGuest)
	ctx := context.Background()

	conv, err := st.Conversations.FindOrCreate(ctx, f.Member.ID, bob.ID)
	if err != nil {
		t.Fatalf("FindOrCreate() error = %v", err)
	}

	for _, profileID := range []string{f.Member.ProfileID, bob.ProfileID} {
		if _, err := st.Conversations.FindForProfile(ctx, conv.ID, profileID); err != nil {
			t.Errorf("FindForProfile(%s) error = %v", profileID, err)
		}
	}

	// A member of the server who is not in the conversation must not resolve
	// it.
	if _, err := st.Conversations.FindForProfile(ctx, conv.ID, eve.ProfileID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an outsider, got %v", err)
	}
}
