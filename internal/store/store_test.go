package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/HaoyangGuo/oolong/internal/models"
)

// setupStore opens an in-memory SQLite database with migrations applied.
func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	st, err := New(db)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return st
}

// fixture is one profile with its own server, general channel and ADMIN
// membership.
type fixture struct {
	Profile models.Profile
	Server  models.Server
	Channel models.Channel
	Member  models.Member
}

func seedRoom(t *testing.T, st *Store, userID string) fixture {
	t.Helper()

	f := fixture{
		Profile: models.Profile{ID: uuid.New().String(), UserID: userID, Username: userID},
	}
	f.Server = models.Server{
		ID:         uuid.New().String(),
		Name:       userID + "'s server",
		InviteCode: uuid.New().String(),
		ProfileID:  f.Profile.ID,
	}
	f.Channel = models.Channel{
		ID:        uuid.New().String(),
		Name:      "general",
		Type:      models.ChannelText,
		ProfileID: f.Profile.ID,
		ServerID:  f.Server.ID,
	}
	f.Member = models.Member{
		ID:        uuid.New().String(),
		Role:      models.RoleAdmin,
		ProfileID: f.Profile.ID,
		ServerID:  f.Server.ID,
	}
	for _, row := range []any{&f.Profile, &f.Server, &f.Channel, &f.Member} {
		if err := st.db.Create(row).Error; err != nil {
			t.Fatalf("failed to seed fixture: %v", err)
		}
	}
	return f
}

// joinServer adds a second profile as a member of an existing server.
func joinServer(t *testing.T, st *Store, f fixture, userID string, role models.MemberRole) models.Member {
	t.Helper()

	p := models.Profile{ID: uuid.New().String(), UserID: userID, Username: userID}
	m := models.Member{ID: uuid.New().String(), Role: role, ProfileID: p.ID, ServerID: f.Server.ID}
	if err := st.db.Create(&p).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
	if err := st.db.Create(&m).Error; err != nil {
		t.Fatalf("failed to seed member: %v", err)
	}
	return m
}

// seedMessage inserts a channel message row directly, with a controlled id and
// timestamp so ordering assertions are deterministic.
func seedMessage(t *testing.T, st *Store, channelID, memberID, id string, at time.Time) {
	t.Helper()

	msg := models.Message{
		ID:        id,
		Content:   "message " + id,
		ChannelID: &channelID,
		MemberID:  memberID,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := st.db.Table(messagesTable).Omit("Member").Create(&msg).Error; err != nil {
		t.Fatalf("failed to seed message %s: %v", id, err)
	}
}
