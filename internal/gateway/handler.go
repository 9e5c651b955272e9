package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/HaoyangGuo/oolong/internal/auth"
	"github.com/HaoyangGuo/oolong/internal/store"
)

const localProfileID = "gateway_profile_id"

// Gateway ties the hub to its authenticated handshake.
type Gateway struct {
	hub      *Hub
	verifier auth.Verifier
	profiles *store.ProfileStore
	presence *Presence
	log      *zap.SugaredLogger
}

func New(hub *Hub, verifier auth.Verifier, profiles *store.ProfileStore, presence *Presence, log *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, verifier: verifier, profiles: profiles, presence: presence, log: log}
}

func (g *Gateway) Hub() *Hub { return g.hub }

// Handshake authenticates the upgrade request. The token travels in the
// Authorization header, or in the token query parameter for browser clients
// that cannot set upgrade headers. A missing or invalid token, or a subject
// with no provisioned profile, rejects the connection; the socket path never
// auto-provisions.
func (g *Gateway) Handshake() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		subject, err := g.verifier.Verify(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		profile, err := g.profiles.FindByUserID(c.Context(), subject)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		c.Locals(localProfileID, profile.ID)
		return c.Next()
	}
}

// Handler runs an accepted connection until it closes.
func (g *Gateway) Handler() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		profileID, _ := ws.Locals(localProfileID).(string)
		conn := newConnection(ws, profileID)

		g.hub.register <- conn
		g.presence.Online(profileID)
		g.log.Debugw("socket open", "profile", profileID)

		go conn.writePump()
		conn.readPump(g.hub)

		g.presence.Offline(profileID)
		g.log.Debugw("socket closed", "profile", profileID)
	})
}
