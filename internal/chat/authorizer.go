package chat

import (
	"context"
	"fmt"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/models"
	"github.com/HaoyangGuo/oolong/internal/store"
)

// Authorizer decides whether a profile may act in a room and as which member.
// It is a pure read; provisioning happens in the HTTP auth middleware.
type Authorizer struct {
	store *store.Store
}

func NewAuthorizer(st *store.Store) *Authorizer {
	return &Authorizer{store: st}
}

// Authorize resolves the caller to their acting member for the room. Channel
// rooms require a membership on the owning server (Unauthorized otherwise)
// and an existing channel under it (NotFound otherwise). Conversation rooms
// require the caller's profile on either side (NotFound otherwise, so the
// conversation's existence never leaks).
func (a *Authorizer) Authorize(ctx context.Context, profileID string, room Room) (*models.Member, error) {
	switch room.Kind {
	case models.RoomChannel:
		if room.ServerID == "" || room.ChannelID == "" {
			return nil, fmt.Errorf("room ids: %w", apperr.ErrInvalidArgument)
		}
		member, err := a.store.Members.FindByServerAndProfile(ctx, room.ServerID, profileID)
		if err != nil {
			return nil, fmt.Errorf("not a member of server %s: %w", room.ServerID, apperr.ErrUnauthorized)
		}
		if _, err := a.store.Channels.GetUnderServer(ctx, room.ServerID, room.ChannelID); err != nil {
			return nil, err
		}
		return member, nil

	case models.RoomConversation:
		if room.ConversationID == "" {
			return nil, fmt.Errorf("conversation id: %w", apperr.ErrInvalidArgument)
		}
		conv, err := a.store.Conversations.FindForProfile(ctx, room.ConversationID, profileID)
		if err != nil {
			return nil, err
		}
		if conv.MemberOne.ProfileID == profileID {
			return &conv.MemberOne, nil
		}
		return &conv.MemberTwo, nil

	default:
		return nil, fmt.Errorf("room kind %q: %w", room.Kind, apperr.ErrInvalidArgument)
	}
}

// RequireRole gates a mutation on the member holding one of the roles.
func RequireRole(member *models.Member, roles ...models.MemberRole) error {
	for _, r := range roles {
		if member.Role == r {
			return nil
		}
	}
	return fmt.Errorf("role %s: %w", member.Role, apperr.ErrUnauthorized)
}
