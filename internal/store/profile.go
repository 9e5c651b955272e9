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

type ProfileStore struct {
	db *gorm.DB
}

// FindByUserID resolves a profile by the external identity subject. Unlike
// FindOrCreate it never provisions; the realtime gateway relies on that.
func (s *ProfileStore) FindByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile for %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindOrCreate resolves the subject to a profile, provisioning a placeholder
// one the first time a new identity is seen. The placeholder username carries
// the subject's last four characters.
func (s *ProfileStore) FindOrCreate(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.FindByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	created := models.Profile{
		ID:            uuid.New().String(),
		UserID:        userID,
		Username:      "user#" + suffix,
		ImageURL:      "placeholder#" + userID,
		ImagePublicID: "placeholder#" + userID,
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		// A concurrent first request may have won the insert.
		if existing, ferr := s.FindByUserID(ctx, userID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return &created, nil
}

// Update applies the non-empty fields and returns the fresh row.
func (s *ProfileStore) Update(ctx context.Context, id string, username string, imageURL, imagePublicID *string) (*models.Profile, error) {
	updates := map[string]any{}
	if username != "" {
		updates["username"] = username
	}
	if imageURL != nil {
		updates["image_url"] = *imageURL
	}
	if imagePublicID != nil {
		updates["image_public_id"] = *imagePublicID
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
