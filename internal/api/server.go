// Package api assembles the HTTP surface: REST handlers, the websocket
// endpoint, auth middleware and the error mapping.
package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/auth"
	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/config"
	"github.com/HaoyangGuo/oolong/internal/events"
	"github.com/HaoyangGuo/oolong/internal/gateway"
	"github.com/HaoyangGuo/oolong/internal/store"
	"github.com/HaoyangGuo/oolong/internal/video"
)

type Server struct {
	cfg      *config.Config
	store    *store.Store
	chat     *chat.Service
	auth     *chat.Authorizer
	gateway  *gateway.Gateway
	events   *events.Publisher
	objects  chat.ObjectStorage
	video    *video.TokenIssuer
	verifier auth.Verifier
	rdb      *redis.Client
	log      *zap.SugaredLogger
}

type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Chat     *chat.Service
	Auth     *chat.Authorizer
	Gateway  *gateway.Gateway
	Events   *events.Publisher
	Objects  chat.ObjectStorage
	Video    *video.TokenIssuer
	Verifier auth.Verifier
	Redis    *redis.Client
	Log      *zap.SugaredLogger
}

func NewServer(d Deps) *fiber.App {
	s := &Server{
		cfg:      d.Config,
		store:    d.Store,
		chat:     d.Chat,
		auth:     d.Auth,
		gateway:  d.Gateway,
		events:   d.Events,
		objects:  d.Objects,
		video:    d.Video,
		verifier: d.Verifier,
		rdb:      d.Redis,
		log:      d.Log,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    10 * 1024 * 1024,
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: d.Config.App.ClientURL}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// The socket handshake carries its own auth and must not auto-provision,
	// so it sits outside the REST middleware chain.
	app.Get("/socket", s.gateway.Handshake(), s.gateway.Handler())

	api := app.Group("/api", s.Authenticate())

	api.Get("/profiles", s.getProfile)
	api.Patch("/profiles", s.updateProfile)

	api.Get("/servers", s.listServers)
	api.Get("/servers/default", s.defaultServer)
	api.Post("/servers/create", s.createServer)
	api.Patch("/servers/join/:inviteCode", s.joinServer)
	api.Get("/servers/:serverId", s.getServer)
	api.Patch("/servers/:serverId", s.updateServer)
	api.Delete("/servers/:serverId", s.deleteServer)
	api.Patch("/servers/:serverId/invite-code", s.rotateInviteCode)
	api.Patch("/servers/:serverId/members/:memberId/role", s.updateMemberRole)
	api.Delete("/servers/:serverId/members/me", s.leaveServer)
	api.Delete("/servers/:serverId/members/:memberId", s.removeMember)
	api.Patch("/servers/:serverId/channels/:channelId", s.updateChannel)
	api.Delete("/servers/:serverId/channels/:channelId", s.deleteChannel)

	api.Get("/channels", s.getChannel)
	api.Post("/channels/:serverId", s.createChannel)

	api.Get("/members/current", s.currentMember)

	api.Post("/conversations/initiate", s.initiateConversation)

	messages := api.Group("/messages")
	if limiter := s.rateLimiter(); limiter != nil {
		messages.Post("/", limiter, s.createMessage)
		messages.Post("/direct", limiter, s.createDirectMessage)
	} else {
		messages.Post("/", s.createMessage)
		messages.Post("/direct", s.createDirectMessage)
	}
	messages.Get("/", s.listMessages)
	messages.Get("/direct", s.listDirectMessages)
	messages.Delete("/direct/:messageId", s.deleteDirectMessage)
	messages.Delete("/:messageId", s.deleteMessage)

	api.Get("/livekits/:roomId", s.videoToken)

	return app
}

// errorHandler maps the error taxonomy onto status codes in one place.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"status": fe.Code, "message": fe.Message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperr.ErrUpload):
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{"status": status, "message": err.Error()})
}
