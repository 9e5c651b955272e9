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

type ServerStore struct {
	db *gorm.DB
}

// memberOf scopes a server query to servers the profile belongs to.
func memberOf(profileID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.Member{}).Select("server_id").Where("profile_id = ?", profileID),
		)
	}
}

// ListForProfile returns the servers the profile is a member of, each with
// its general channel for client-side landing navigation.
func (s *ServerStore) ListForProfile(ctx context.Context, profileID string) ([]models.Server, error) {
	var servers []models.Server
	err := s.db.WithContext(ctx).Scopes(memberOf(profileID)).
		Preload("Channels", "name = ?", "general").
		Find(&servers).Error
	return servers, err
}

// Default returns any one server the profile belongs to, or NotFound.
func (s *ServerStore) Default(ctx context.Context, profileID string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).Scopes(memberOf(profileID)).
		Preload("Channels", "name = ?", "general").
		First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("default server: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// GetForMember loads a server the profile belongs to, with channels in
// creation order and members (with profiles) in role order.
func (s *ServerStore) GetForMember(ctx context.Context, serverID, profileID string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).Scopes(memberOf(profileID)).
		Preload("Channels", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("CASE role WHEN 'ADMIN' THEN 0 WHEN 'MODERATOR' THEN 1 ELSE 2 END")
		}).
		Preload("Members.Profile").
		Where("id = ?", serverID).
		First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("server %s: %w", serverID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// Create makes a server with its general channel and the owner as ADMIN
// member, in one transaction.
func (s *ServerStore) Create(ctx context.Context, ownerProfileID, name, imageURL, imagePublicID string) (*models.Server, error) {
	server := models.Server{
		ID:            uuid.New().String(),
		Name:          name,
		ImageURL:      imageURL,
		ImagePublicID: imagePublicID,
		InviteCode:    uuid.New().String(),
		ProfileID:     ownerProfileID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Channels", "Members").Create(&server).Error; err != nil {
			return err
		}
		general := models.Channel{
			ID:        uuid.New().String(),
			Name:      "general",
			Type:      models.ChannelText,
			ProfileID: ownerProfileID,
			ServerID:  server.ID,
		}
		if err := tx.Create(&general).Error; err != nil {
			return err
		}
		admin := models.Member{
			ID:        uuid.New().String(),
			Role:      models.RoleAdmin,
			ProfileID: ownerProfileID,
			ServerID:  server.ID,
		}
		return tx.Omit("Profile").Create(&admin).Error
	})
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// UpdateOwned applies name/image changes to a server the profile owns.
func (s *ServerStore) UpdateOwned(ctx context.Context, serverID, ownerProfileID string, updates map[string]any) (*models.Server, error) {
	server, err := s.GetOwned(ctx, serverID, ownerProfileID)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Server{}).
			Where("id = ?", server.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetOwned(ctx, serverID, ownerProfileID)
}

// GetOwned loads a server only for its owner.
func (s *ServerStore) GetOwned(ctx context.Context, serverID, ownerProfileID string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", serverID, ownerProfileID).
		First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("server %s: %w", serverID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &server, nil
}

// RotateInvite replaces the invite code of an owned server.
func (s *ServerStore) RotateInvite(ctx context.Context, serverID, ownerProfileID string) (*models.Server, error) {
	return s.UpdateOwned(ctx, serverID, ownerProfileID, map[string]any{"invite_code": uuid.New().String()})
}

// JoinByInvite adds the profile as a GUEST member of the server the invite
// code belongs to. Joining a server twice is rejected.
func (s *ServerStore) JoinByInvite(ctx context.Context, profileID, inviteCode string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).Where("invite_code = ?", inviteCode).First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invite %s: %w", inviteCode, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	member := models.Member{
		ID:        uuid.New().String(),
		Role:      models.RoleGuest,
		ProfileID: profileID,
		ServerID:  server.ID,
	}
	if err := s.db.WithContext(ctx).Omit("Profile").Create(&member).Error; err != nil {
		// The (profile, server) pair is unique; a second join lands here.
		return nil, fmt.Errorf("already a member: %w", apperr.ErrInvalidArgument)
	}
	return &server, nil
}

// Leave removes the caller's own membership from a server they do not own.
func (s *ServerStore) Leave(ctx context.Context, serverID, profileID string) (*models.Server, error) {
	var server models.Server
	err := s.db.WithContext(ctx).
		Where("id = ? AND profile_id <> ?", serverID, profileID).
		First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("server %s: %w", serverID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).
		Where("server_id = ? AND profile_id = ?", serverID, profileID).
		Delete(&models.Member{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("membership: %w", apperr.ErrNotFound)
	}
	return &server, nil
}

// DeleteOwned removes an owned server with its channels, members and
// messages.
func (s *ServerStore) DeleteOwned(ctx context.Context, serverID, ownerProfileID string) (*models.Server, error) {
	server, err := s.GetOwned(ctx, serverID, ownerProfileID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(messagesTable).
			Where("channel_id IN (?)", tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.Channel{}).Select("id").Where("server_id = ?", serverID)).
			Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", serverID).Delete(&models.Channel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", serverID).Delete(&models.Member{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Server{}, "id = ?", serverID).Error
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}
