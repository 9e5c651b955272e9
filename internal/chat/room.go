// Package chat owns the message subsystem: room addressing, membership
// authorization and the create/delete orchestration.
package chat

import "github.com/HaoyangGuo/oolong/internal/models"

// Room addresses a chat location: a channel in a server, or a direct
// conversation. ServerID is only meaningful for channel rooms.
type Room struct {
	Kind           models.RoomKind
	ServerID       string
	ChannelID      string
	ConversationID string
}

func ChannelRoom(serverID, channelID string) Room {
	return Room{Kind: models.RoomChannel, ServerID: serverID, ChannelID: channelID}
}

func ConversationRoom(conversationID string) Room {
	return Room{Kind: models.RoomConversation, ConversationID: conversationID}
}

// ID is the room's addressing id: the channel id for channel rooms, the
// conversation id otherwise.
func (r Room) ID() string {
	if r.Kind == models.RoomConversation {
		return r.ConversationID
	}
	return r.ChannelID
}

// CreateKey and DeleteKey name the broadcast channels for new-message and
// deleted-message events. Emitter and listener match these by string
// equality, so the format is a wire contract.
func (r Room) CreateKey() string {
	return "chat:" + r.ID() + ":messages"
}

func (r Room) DeleteKey() string {
	return "chat:" + r.ID() + ":messages:delete"
}
