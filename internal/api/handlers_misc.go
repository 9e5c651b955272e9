package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/HaoyangGuo/oolong/internal/apperr"
)

func (s *Server) getProfile(c *fiber.Ctx) error {
	return c.JSON(s.profile(c))
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	existing := s.profile(c)

	var imageURL, imagePublicID *string
	if image, err := formImage(c); err != nil {
		return err
	} else if image != nil {
		// Placeholder handles never existed in object storage.
		if existing.ImagePublicID != "" && !strings.HasPrefix(existing.ImagePublicID, "placeholder#") {
			if derr := s.objects.Delete(c.Context(), existing.ImagePublicID); derr != nil {
				s.log.Warnw("delete profile image", "profile", existing.ID, "err", derr)
			}
		}
		url, handle, err := s.objects.Upload(c.Context(), image.Filename, image.ContentType, image.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrUpload, err)
		}
		imageURL, imagePublicID = &url, &handle
	}

	profile, err := s.store.Profiles.Update(c.Context(), existing.ID, strings.TrimSpace(c.FormValue("username")), imageURL, imagePublicID)
	if err != nil {
		return err
	}
	return c.JSON(profile)
}

func (s *Server) currentMember(c *fiber.Ctx) error {
	serverID := c.Query("serverId")
	if serverID == "" {
		return fmt.Errorf("serverId: %w", apperr.ErrInvalidArgument)
	}
	member, err := s.store.Members.FindByServerAndProfile(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return fmt.Errorf("not a member: %w", apperr.ErrUnauthorized)
	}
	return c.JSON(member)
}

type initiateConversationReq struct {
	MemberOneID string `json:"memberOneId"`
	MemberTwoID string `json:"memberTwoId"`
}

func (s *Server) initiateConversation(c *fiber.Ctx) error {
	var req initiateConversationReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	if req.MemberOneID == "" || req.MemberTwoID == "" {
		return fmt.Errorf("member ids: %w", apperr.ErrInvalidArgument)
	}
	conv, err := s.store.Conversations.FindOrCreate(c.Context(), req.MemberOneID, req.MemberTwoID)
	if err != nil {
		return err
	}
	return c.JSON(conv)
}

func (s *Server) videoToken(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return fmt.Errorf("roomId: %w", apperr.ErrInvalidArgument)
	}
	profile := s.profile(c)
	token, err := s.video.RoomToken(roomID, profile.UserID, profile.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": token})
}
