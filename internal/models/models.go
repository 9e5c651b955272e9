// Package models holds the persistent entities. JSON tags follow the wire
// shape the web client consumes (camelCase, nested member/profile joins).
package models

import "time"

type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleGuest     MemberRole = "GUEST"
)

type ChannelType string

const (
	ChannelText  ChannelType = "TEXT"
	ChannelAudio ChannelType = "AUDIO"
	ChannelVideo ChannelType = "VIDEO"
)

// RoomKind selects between the two parallel message tables. Channel and
// direct messages are structurally identical; a single model tagged with the
// kind keeps the two code paths behaviorally identical.
type RoomKind string

const (
	RoomChannel      RoomKind = "channel"
	RoomConversation RoomKind = "conversation"
)

type Profile struct {
	ID            string    `gorm:"primarykey;size:36" json:"id"`
	UserID        string    `gorm:"uniqueIndex;size:191;not null" json:"userId"`
	Username      string    `gorm:"size:191;not null" json:"username"`
	ImageURL      string    `gorm:"size:512" json:"imageUrl"`
	ImagePublicID string    `gorm:"size:191" json:"imagePublicId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Server struct {
	ID            string    `gorm:"primarykey;size:36" json:"id"`
	Name          string    `gorm:"size:191;not null" json:"name"`
	ImageURL      string    `gorm:"size:512" json:"imageUrl"`
	ImagePublicID string    `gorm:"size:191" json:"imagePublicId"`
	InviteCode    string    `gorm:"uniqueIndex;size:36;not null" json:"inviteCode"`
	ProfileID     string    `gorm:"index;size:36;not null" json:"profileId"`
	Channels      []Channel `gorm:"constraint:OnDelete:CASCADE" json:"channels,omitempty"`
	Members       []Member  `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Member struct {
	ID        string     `gorm:"primarykey;size:36" json:"id"`
	Role      MemberRole `gorm:"size:16;not null;default:GUEST" json:"role"`
	ProfileID string     `gorm:"uniqueIndex:idx_member_profile_server;size:36;not null" json:"profileId"`
	Profile   Profile    `json:"profile,omitempty"`
	ServerID  string     `gorm:"uniqueIndex:idx_member_profile_server;size:36;not null" json:"serverId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Channel struct {
	ID        string      `gorm:"primarykey;size:36" json:"id"`
	Name      string      `gorm:"size:191;not null" json:"name"`
	Type      ChannelType `gorm:"size:16;not null;default:TEXT" json:"type"`
	ProfileID string      `gorm:"size:36;not null" json:"profileId"`
	ServerID  string      `gorm:"index;size:36;not null" json:"serverId"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Conversation is an unordered pair of members. The pair is stored in
// canonical (lexicographic) order and carries a composite unique index, so a
// concurrent initiate race surfaces as a constraint conflict instead of a
// duplicate row.
type Conversation struct {
	ID          string    `gorm:"primarykey;size:36" json:"id"`
	MemberOneID string    `gorm:"uniqueIndex:idx_conversation_members;size:36;not null" json:"memberOneId"`
	MemberOne   Member    `gorm:"foreignKey:MemberOneID" json:"memberOne,omitempty"`
	MemberTwoID string    `gorm:"uniqueIndex:idx_conversation_members;size:36;not null" json:"memberTwoId"`
	MemberTwo   Member    `gorm:"foreignKey:MemberTwoID" json:"memberTwo,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Message backs both the channel and the direct table; exactly one of
// ChannelID/ConversationID is set. Rows are never physically removed: a
// delete scrubs content and image fields and sets Deleted.
type Message struct {
	ID             string    `gorm:"primarykey;size:36" json:"id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ImageURL       *string   `gorm:"size:512" json:"imageUrl"`
	ImagePublicID  *string   `gorm:"size:191" json:"imagePublicId"`
	ChannelID      *string   `gorm:"index;size:36" json:"channelId,omitempty"`
	ConversationID *string   `gorm:"index;size:36" json:"conversationId,omitempty"`
	MemberID       string    `gorm:"index;size:36;not null" json:"memberId"`
	Member         Member    `json:"member"`
	Deleted        bool      `gorm:"not null;default:false" json:"deleted"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DeletedPlaceholder replaces the content of a soft-deleted message. The
// string is part of the client contract.
const DeletedPlaceholder = "This message has been deleted."
