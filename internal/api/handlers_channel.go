package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/models"
)

func validChannelType(t models.ChannelType) bool {
	switch t {
	case models.ChannelText, models.ChannelAudio, models.ChannelVideo:
		return true
	}
	return false
}

// requireChannelManager resolves the caller's member on the server and gates
// on ADMIN or MODERATOR.
func (s *Server) requireChannelManager(c *fiber.Ctx, serverID string) (*models.Member, error) {
	member, err := s.store.Members.FindByServerAndProfile(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return nil, fmt.Errorf("not a member: %w", apperr.ErrUnauthorized)
	}
	if err := chat.RequireRole(member, models.RoleAdmin, models.RoleModerator); err != nil {
		return nil, err
	}
	return member, nil
}

type createChannelReq struct {
	Name string             `json:"name"`
	Type models.ChannelType `json:"type"`
}

func (s *Server) createChannel(c *fiber.Ctx) error {
	serverID := c.Params("serverId")
	var req createChannelReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !validChannelType(req.Type) {
		return fmt.Errorf("channel name/type: %w", apperr.ErrInvalidArgument)
	}
	if req.Name == "general" {
		return fmt.Errorf("channel name reserved: %w", apperr.ErrInvalidArgument)
	}
	member, err := s.requireChannelManager(c, serverID)
	if err != nil {
		return err
	}
	channel, err := s.store.Channels.Create(c.Context(), serverID, member.ProfileID, req.Name, req.Type)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(channel)
}

func (s *Server) getChannel(c *fiber.Ctx) error {
	serverID, channelID := c.Query("serverId"), c.Query("channelId")
	if serverID == "" || channelID == "" {
		return fmt.Errorf("serverId and channelId: %w", apperr.ErrInvalidArgument)
	}
	if _, err := s.store.Members.FindByServerAndProfile(c.Context(), serverID, s.profileID(c)); err != nil {
		return fmt.Errorf("not a member: %w", apperr.ErrUnauthorized)
	}
	channel, err := s.store.Channels.GetUnderServer(c.Context(), serverID, channelID)
	if err != nil {
		return err
	}
	return c.JSON(channel)
}

type updateChannelReq struct {
	Name string             `json:"name"`
	Type models.ChannelType `json:"type"`
}

func (s *Server) updateChannel(c *fiber.Ctx) error {
	serverID, channelID := c.Params("serverId"), c.Params("channelId")
	var req updateChannelReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	if _, err := s.requireChannelManager(c, serverID); err != nil {
		return err
	}
	existing, err := s.store.Channels.GetUnderServer(c.Context(), serverID, channelID)
	if err != nil {
		return err
	}
	if existing.Name == "general" {
		return fmt.Errorf("general channel is immutable: %w", apperr.ErrInvalidArgument)
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(req.Name); name != "" && name != "general" {
		updates["name"] = name
	}
	if req.Type != "" {
		if !validChannelType(req.Type) {
			return fmt.Errorf("channel type %q: %w", req.Type, apperr.ErrInvalidArgument)
		}
		updates["type"] = req.Type
	}
	channel, err := s.store.Channels.Update(c.Context(), serverID, channelID, updates)
	if err != nil {
		return err
	}
	return c.JSON(channel)
}

func (s *Server) deleteChannel(c *fiber.Ctx) error {
	serverID, channelID := c.Params("serverId"), c.Params("channelId")
	if _, err := s.requireChannelManager(c, serverID); err != nil {
		return err
	}
	existing, err := s.store.Channels.GetUnderServer(c.Context(), serverID, channelID)
	if err != nil {
		return err
	}
	if existing.Name == "general" {
		return fmt.Errorf("general channel is immutable: %w", apperr.ErrInvalidArgument)
	}
	if err := s.store.Channels.Delete(c.Context(), serverID, channelID); err != nil {
		return err
	}
	return c.JSON(existing)
}
