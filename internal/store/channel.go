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

type ChannelStore struct {
	db *gorm.DB
}

// GetUnderServer resolves a channel under the given server, NotFound if the
// channel does not belong to it.
func (s *ChannelStore) GetUnderServer(ctx context.Context, serverID, channelID string) (*models.Channel, error) {
	var ch models.Channel
	err := s.db.WithContext(ctx).
		Where("id = ? AND server_id = ?", channelID, serverID).
		First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("channel %s: %w", channelID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetByID resolves a channel regardless of server, for callers that only
// hold the channel id.
func (s *ChannelStore) GetByID(ctx context.Context, channelID string) (*models.Channel, error) {
	var ch models.Channel
	err := s.db.WithContext(ctx).Where("id = ?", channelID).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("channel %s: %w", channelID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) Create(ctx context.Context, serverID, creatorProfileID, name string, channelType models.ChannelType) (*models.Channel, error) {
	ch := models.Channel{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      channelType,
		ProfileID: creatorProfileID,
		ServerID:  serverID,
	}
	if err := s.db.WithContext(ctx).Create(&ch).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *ChannelStore) Update(ctx context.Context, serverID, channelID string, updates map[string]any) (*models.Channel, error) {
	ch, err := s.GetUnderServer(ctx, serverID, channelID)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Channel{}).
			Where("id = ?", ch.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetUnderServer(ctx, serverID, channelID)
}

// Delete removes a channel and its messages.
func (s *ChannelStore) Delete(ctx context.Context, serverID, channelID string) error {
	ch, err := s.GetUnderServer(ctx, serverID, channelID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(messagesTable).Where("channel_id = ?", ch.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Channel{}, "id = ?", ch.ID).Error
	})
}
