// Package video issues room tokens for the external conferencing provider.
// Pure pass-through; no room state lives here.
package video

import (
	"fmt"
	"time"

	lkauth "github.com/livekit/protocol/auth"
)

type TokenIssuer struct {
	apiKey    string
	apiSecret string
}

func NewTokenIssuer(apiKey, apiSecret string) *TokenIssuer {
	return &TokenIssuer{apiKey: apiKey, apiSecret: apiSecret}
}

// RoomToken grants the identity join/publish/subscribe on the room.
func (t *TokenIssuer) RoomToken(roomID, identity, name string) (string, error) {
	if roomID == "" {
		return "", fmt.Errorf("room id required")
	}
	canPublish := true
	canSubscribe := true
	at := lkauth.NewAccessToken(t.apiKey, t.apiSecret).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(6 * time.Hour).
		AddGrant(&lkauth.VideoGrant{
			RoomJoin:     true,
			Room:         roomID,
			CanPublish:   &canPublish,
			CanSubscribe: &canSubscribe,
		})
	return at.ToJWT()
}
