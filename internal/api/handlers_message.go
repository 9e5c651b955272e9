package api

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/chat"
)

// channelRoom resolves the room for a channel id, deriving the owning server
// when the caller did not send it.
func (s *Server) channelRoom(c *fiber.Ctx, serverID, channelID string) (chat.Room, error) {
	if channelID == "" {
		return chat.Room{}, fmt.Errorf("channelId: %w", apperr.ErrInvalidArgument)
	}
	if serverID == "" {
		ch, err := s.store.Channels.GetByID(c.Context(), channelID)
		if err != nil {
			return chat.Room{}, err
		}
		serverID = ch.ServerID
	}
	return chat.ChannelRoom(serverID, channelID), nil
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	room, err := s.channelRoom(c, c.Query("serverId"), c.Query("channelId"))
	if err != nil {
		return err
	}
	page, err := s.chat.ListMessages(c.Context(), s.profileID(c), room, c.Query("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) listDirectMessages(c *fiber.Ctx) error {
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		return fmt.Errorf("conversationId: %w", apperr.ErrInvalidArgument)
	}
	page, err := s.chat.ListMessages(c.Context(), s.profileID(c), chat.ConversationRoom(conversationID), c.Query("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// formImage reads the optional multipart image into an upload, nil when the
// field is absent.
func formImage(c *fiber.Ctx) (*chat.Upload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("image: %w", apperr.ErrInvalidArgument)
	}
	defer func(f multipart.File) { _ = f.Close() }(f)
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("image: %w", apperr.ErrInvalidArgument)
	}
	return &chat.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

// emit pushes the mutation to connected clients and mirrors it to the event
// stream. Runs after the database write; an aborted request between the two
// leaves clients to catch up over REST.
func (s *Server) emit(c *fiber.Ctx, em *chat.Emission) {
	s.gateway.Hub().Emit(em.Key, em.Message)
	s.events.Publish(c.Context(), em.Key, em.Message)
}

func (s *Server) createMessage(c *fiber.Ctx) error {
	serverID, channelID := c.Query("serverId"), c.Query("channelId")
	if serverID == "" || channelID == "" {
		return fmt.Errorf("serverId and channelId: %w", apperr.ErrInvalidArgument)
	}
	image, err := formImage(c)
	if err != nil {
		return err
	}
	em, err := s.chat.PostMessage(c.Context(), s.profileID(c), chat.ChannelRoom(serverID, channelID), c.FormValue("content"), image)
	if err != nil {
		return err
	}
	s.emit(c, em)
	return c.JSON(em.Message)
}

func (s *Server) createDirectMessage(c *fiber.Ctx) error {
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		return fmt.Errorf("conversationId: %w", apperr.ErrInvalidArgument)
	}
	image, err := formImage(c)
	if err != nil {
		return err
	}
	em, err := s.chat.PostMessage(c.Context(), s.profileID(c), chat.ConversationRoom(conversationID), c.FormValue("content"), image)
	if err != nil {
		return err
	}
	s.emit(c, em)
	return c.JSON(em.Message)
}

type deleteMessageReq struct {
	ServerID  string `json:"serverId"`
	ChannelID string `json:"channelId"`
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	var req deleteMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	if req.ServerID == "" || req.ChannelID == "" {
		return fmt.Errorf("serverId and channelId: %w", apperr.ErrInvalidArgument)
	}
	em, err := s.chat.DeleteMessage(c.Context(), s.profileID(c), chat.ChannelRoom(req.ServerID, req.ChannelID), c.Params("messageId"))
	if err != nil {
		return err
	}
	s.emit(c, em)
	return c.JSON(em.Message)
}

type deleteDirectMessageReq struct {
	ConversationID string `json:"conversationId"`
}

func (s *Server) deleteDirectMessage(c *fiber.Ctx) error {
	var req deleteDirectMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	if req.ConversationID == "" {
		return fmt.Errorf("conversationId: %w", apperr.ErrInvalidArgument)
	}
	em, err := s.chat.DeleteMessage(c.Context(), s.profileID(c), chat.ConversationRoom(req.ConversationID), c.Params("messageId"))
	if err != nil {
		return err
	}
	s.emit(c, em)
	return c.JSON(em.Message)
}
