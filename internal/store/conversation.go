package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
)

type ConversationStore struct {
	db *gorm.DB
}

func conversationPreloads(db *gorm.DB) *gorm.DB {
	return db.Preload("MemberOne.Profile").Preload("MemberTwo.Profile")
}

// FindByMembers looks the pair up in both orderings; no canonical ordering is
// assumed on read so rows created before canonicalization keep resolving.
func (s *ConversationStore) FindByMembers(ctx context.Context, memberOneID, memberTwoID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := conversationPreloads(s.db.WithContext(ctx)).
		Where("(member_one_id = ? AND member_two_id = ?) OR (member_one_id = ? AND member_two_id = ?)",
			memberOneID, memberTwoID, memberTwoID, memberOneID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreate returns the pair's conversation, creating it if absent. The
// pair is stored in canonical order under a unique index, so a concurrent
// initiate collapses into a conflict followed by a re-read; exactly one row
// exists afterwards either way.
func (s *ConversationStore) FindOrCreate(ctx context.Context, memberOneID, memberTwoID string) (*models.Conversation, error) {
	conv, err := s.FindByMembers(ctx, memberOneID, memberTwoID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	one, two := memberOneID, memberTwoID
	if two < one {
		one, two = two, one
	}
	created := models.Conversation{
		ID:          uuid.New().String(),
		MemberOneID: one,
		MemberTwoID: two,
	}
	if err := s.db.WithContext(ctx).Omit("MemberOne", "MemberTwo").Create(&created).Error; err != nil {
		// Lost the race; the winner's row is the conversation.
		if existing, ferr := s.FindByMembers(ctx, memberOneID, memberTwoID); ferr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("initiate conversation: %w", apperr.ErrConflict)
	}
	return s.FindByMembers(ctx, memberOneID, memberTwoID)
}

// FindForProfile resolves a conversation by id only if the profile sits on
// either side of it.
func (s *ConversationStore) FindForProfile(ctx context.Context, conversationID, profileID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := conversationPreloads(s.db.WithContext(ctx)).
		Joins("JOIN members m1 ON m1.id = conversations.member_one_id").
		Joins("JOIN members m2 ON m2.id = conversations.member_two_id").
		Where("conversations.id = ? AND (m1.profile_id = ? OR m2.profile_id = ?)",
			conversationID, profileID, profileID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
