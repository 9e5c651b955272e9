// Package store is the relational persistence layer. Each entity gets a small
// repository over a shared *gorm.DB; the message repository runs the two
// parallel message tables through one model.
package store

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/HaoyangGuo/oolong/internal/models"
)

type Store struct {
	db *gorm.DB

	Profiles      *ProfileStore
	Servers       *ServerStore
	Channels      *ChannelStore
	Members       *MemberStore
	Conversations *ConversationStore
	Messages      *MessageStore
}

// Open opens the database at dsn and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wires the repositories over an existing connection and migrates the
// schema. Tests use this with an in-memory database.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Server{},
		&models.Member{},
		&models.Channel{},
		&models.Conversation{},
	); err != nil {
		return nil, err
	}
	// The two message tables share one model, so they are migrated with an
	// explicit table override each.
	if err := db.Table(messagesTable).AutoMigrate(&models.Message{}); err != nil {
		return nil, err
	}
	if err := db.Table(directMessagesTable).AutoMigrate(&models.Message{}); err != nil {
		return nil, err
	}

	return &Store{
		db:            db,
		Profiles:      &ProfileStore{db: db},
		Servers:       &ServerStore{db: db},
		Channels:      &ChannelStore{db: db},
		Members:       &MemberStore{db: db},
		Conversations: &ConversationStore{db: db},
		Messages:      &MessageStore{db: db},
	}, nil
}
