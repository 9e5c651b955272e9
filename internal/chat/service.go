package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
	"github.com/HaoyangGuo/oolong/internal/store"
)

// ObjectStorage is the external binary store consumed by the message path.
type ObjectStorage interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (url, handle string, err error)
	Delete(ctx context.Context, handle string) error
}

// Upload is an incoming attachment.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Emission pairs a persisted mutation with the broadcast channel it belongs
// on. The HTTP handler performs the actual emit, keeping persistence and
// delivery decoupled.
type Emission struct {
	Key     string
	Message *models.Message
}

// Service orchestrates the message lifecycle for both room kinds:
// authorize, validate, upload, persist, derive the room key.
type Service struct {
	store   *store.Store
	auth    *Authorizer
	objects ObjectStorage
	log     *zap.SugaredLogger
}

func NewService(st *store.Store, auth *Authorizer, objects ObjectStorage, log *zap.SugaredLogger) *Service {
	return &Service{store: st, auth: auth, objects: objects, log: log}
}

// ListMessages returns one page of the room, newest first.
func (s *Service) ListMessages(ctx context.Context, profileID string, room Room, cursor string) (*store.MessagePage, error) {
	if _, err := s.auth.Authorize(ctx, profileID, room); err != nil {
		return nil, err
	}
	return s.store.Messages.ListPage(ctx, room.Kind, room.ID(), cursor)
}

// PostMessage persists a new message authored by the caller's member in the
// room. An attachment is uploaded first; an upload failure aborts the write
// and no partial message is persisted.
func (s *Service) PostMessage(ctx context.Context, profileID string, room Room, content string, image *Upload) (*Emission, error) {
	member, err := s.auth.Authorize(ctx, profileID, room)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("content: %w", apperr.ErrInvalidArgument)
	}

	var imageURL, imagePublicID *string
	if image != nil {
		url, handle, err := s.objects.Upload(ctx, image.Filename, image.ContentType, image.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrUpload, err)
		}
		imageURL, imagePublicID = &url, &handle
	}

	msg, err := s.store.Messages.Insert(ctx, room.Kind, room.ID(), member.ID, content, imageURL, imagePublicID)
	if err != nil {
		return nil, err
	}
	return &Emission{Key: room.CreateKey(), Message: msg}, nil
}

// DeleteMessage soft-deletes: the row is retained with scrubbed content and
// cleared image fields. Allowed for the author and for ADMIN/MODERATOR
// members of the room. Deleting an already-deleted message fails NotFound.
func (s *Service) DeleteMessage(ctx context.Context, profileID string, room Room, messageID string) (*Emission, error) {
	member, err := s.auth.Authorize(ctx, profileID, room)
	if err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, fmt.Errorf("message id: %w", apperr.ErrInvalidArgument)
	}

	msg, err := s.store.Messages.Get(ctx, room.Kind, room.ID(), messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}

	isOwner := msg.Member.ProfileID == profileID
	if !isOwner {
		if err := RequireRole(member, models.RoleAdmin, models.RoleModerator); err != nil {
			return nil, err
		}
	}

	// Best effort: losing the stored image must not keep the message alive.
	if msg.ImagePublicID != nil {
		if err := s.objects.Delete(ctx, *msg.ImagePublicID); err != nil {
			s.log.Warnw("delete message image", "message", messageID, "err", err)
		}
	}

	scrubbed, err := s.store.Messages.SoftDelete(ctx, room.Kind, room.ID(), messageID)
	if err != nil {
		return nil, err
	}
	return &Emission{Key: room.DeleteKey(), Message: scrubbed}, nil
}
