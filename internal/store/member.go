package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
)

type MemberStore struct {
	db *gorm.DB
}

// FindByServerAndProfile returns the caller's membership on a server, with
// the profile joined in.
func (s *MemberStore) FindByServerAndProfile(ctx context.Context, serverID, profileID string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).Preload("Profile").
		Where("server_id = ? AND profile_id = ?", serverID, profileID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member of server %s: %w", serverID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) FindByID(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	err := s.db.WithContext(ctx).Preload("Profile").Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateRole changes a member's role, never the caller's own.
func (s *MemberStore) UpdateRole(ctx context.Context, serverID, memberID, callerProfileID string, role models.MemberRole) error {
	res := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND server_id = ? AND profile_id <> ?", memberID, serverID, callerProfileID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberID, apperr.ErrNotFound)
	}
	return nil
}

// Remove kicks a member from a server, never the caller's own membership.
func (s *MemberStore) Remove(ctx context.Context, serverID, memberID, callerProfileID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND server_id = ? AND profile_id <> ?", memberID, serverID, callerProfileID).
		Delete(&models.Member{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("member %s: %w", memberID, apperr.ErrNotFound)
	}
	return nil
}
