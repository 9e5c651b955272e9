package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
)

// MessagesPerPage is the fixed page size of the cursor pagination.
const MessagesPerPage = 15

const (
	messagesTable       = "messages"
	directMessagesTable = "direct_messages"
)

// MessagePage is one page of a backward (newest-first) scroll. NextCursor is
// non-nil iff the page came back full; at an exact page-size boundary this
// over-promises one empty fetch, which is accepted.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor *string          `json:"nextCursor"`
}

type MessageStore struct {
	db *gorm.DB
}

func messageTable(kind models.RoomKind) string {
	if kind == models.RoomConversation {
		return directMessagesTable
	}
	return messagesTable
}

func roomColumn(kind models.RoomKind) string {
	if kind == models.RoomConversation {
		return "conversation_id"
	}
	return "channel_id"
}

// ListPage returns up to MessagesPerPage messages of the room, newest first,
// each with its author member and profile joined in. A cursor names the last
// message of the previous page; the cursor row itself is skipped and only
// strictly older rows are returned. Ties on created_at break on id descending
// so chained pages never duplicate or skip a row.
func (s *MessageStore) ListPage(ctx context.Context, kind models.RoomKind, roomID, cursor string) (*MessagePage, error) {
	table := messageTable(kind)
	q := s.db.WithContext(ctx).Table(table).
		Preload("Member.Profile").
		Where(roomColumn(kind)+" = ?", roomID)

	if cursor != "" {
		var pivot models.Message
		err := s.db.WithContext(ctx).Table(table).
			Select("id", "created_at").
			Where("id = ? AND "+roomColumn(kind)+" = ?", cursor, roomID).
			First(&pivot).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cursor %s: %w", cursor, apperr.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)",
			pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var messages []models.Message
	if err := q.Order("created_at DESC, id DESC").Limit(MessagesPerPage).Find(&messages).Error; err != nil {
		return nil, err
	}

	page := &MessagePage{Messages: messages}
	if len(messages) == MessagesPerPage {
		last := messages[len(messages)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// Insert persists a new message and returns it with the author join intact.
func (s *MessageStore) Insert(ctx context.Context, kind models.RoomKind, roomID, memberID, content string, imageURL, imagePublicID *string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("content: %w", apperr.ErrInvalidArgument)
	}
	msg := models.Message{
		ID:            uuid.New().String(),
		Content:       content,
		ImageURL:      imageURL,
		ImagePublicID: imagePublicID,
		MemberID:      memberID,
	}
	if kind == models.RoomConversation {
		msg.ConversationID = &roomID
	} else {
		msg.ChannelID = &roomID
	}
	if err := s.db.WithContext(ctx).Table(messageTable(kind)).Omit("Member").Create(&msg).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, kind, roomID, msg.ID)
}

// Get loads one message of the room with its author join.
func (s *MessageStore) Get(ctx context.Context, kind models.RoomKind, roomID, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Table(messageTable(kind)).
		Preload("Member.Profile").
		Where("id = ? AND "+roomColumn(kind)+" = ?", id, roomID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("message %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// SoftDelete scrubs the message in a single conditional update: the row must
// still be live when the update lands, so two concurrent deletes cannot both
// succeed. Deleting an already-deleted message is NotFound, not a no-op.
func (s *MessageStore) SoftDelete(ctx context.Context, kind models.RoomKind, roomID, id string) (*models.Message, error) {
	res := s.db.WithContext(ctx).Table(messageTable(kind)).
		Where("id = ? AND "+roomColumn(kind)+" = ? AND deleted = ?", id, roomID, false).
		Updates(map[string]any{
			"content":         models.DeletedPlaceholder,
			"image_url":       nil,
			"image_public_id": nil,
			"deleted":         true,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("message %s: %w", id, apperr.ErrNotFound)
	}
	return s.Get(ctx, kind, roomID, id)
}
