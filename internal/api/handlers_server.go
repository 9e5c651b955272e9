package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/HaoyangGuo/oolong/internal/apperr"
	"github.com/HaoyangGuo/oolong/internal/chat"
	"github.com/HaoyangGuo/oolong/internal/models"
)

func (s *Server) listServers(c *fiber.Ctx) error {
	servers, err := s.store.Servers.ListForProfile(c.Context(), s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(servers)
}

func (s *Server) defaultServer(c *fiber.Ctx) error {
	server, err := s.store.Servers.Default(c.Context(), s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) getServer(c *fiber.Ctx) error {
	server, err := s.store.Servers.GetForMember(c.Context(), c.Params("serverId"), s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) createServer(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return fmt.Errorf("server name: %w", apperr.ErrInvalidArgument)
	}
	image, err := formImage(c)
	if err != nil {
		return err
	}
	if image == nil {
		return fmt.Errorf("server image: %w", apperr.ErrInvalidArgument)
	}
	url, handle, err := s.objects.Upload(c.Context(), image.Filename, image.ContentType, image.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpload, err)
	}
	server, err := s.store.Servers.Create(c.Context(), s.profileID(c), name, url, handle)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(server)
}

func (s *Server) updateServer(c *fiber.Ctx) error {
	serverID := c.Params("serverId")
	existing, err := s.store.Servers.GetOwned(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return err
	}

	updates := map[string]any{}
	if image, err := formImage(c); err != nil {
		return err
	} else if image != nil {
		url, handle, err := s.objects.Upload(c.Context(), image.Filename, image.ContentType, image.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrUpload, err)
		}
		if existing.ImagePublicID != "" {
			if derr := s.objects.Delete(c.Context(), existing.ImagePublicID); derr != nil {
				s.log.Warnw("delete server image", "server", serverID, "err", derr)
			}
		}
		updates["image_url"] = url
		updates["image_public_id"] = handle
	}
	if name := strings.TrimSpace(c.FormValue("name")); name != "" && name != existing.Name {
		updates["name"] = name
	}

	server, err := s.store.Servers.UpdateOwned(c.Context(), serverID, s.profileID(c), updates)
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) joinServer(c *fiber.Ctx) error {
	server, err := s.store.Servers.JoinByInvite(c.Context(), s.profileID(c), c.Params("inviteCode"))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) rotateInviteCode(c *fiber.Ctx) error {
	server, err := s.store.Servers.RotateInvite(c.Context(), c.Params("serverId"), s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

type updateRoleReq struct {
	Role models.MemberRole `json:"role"`
}

func (s *Server) updateMemberRole(c *fiber.Ctx) error {
	var req updateRoleReq
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("body: %w", apperr.ErrInvalidArgument)
	}
	if req.Role != models.RoleGuest && req.Role != models.RoleModerator {
		return fmt.Errorf("role %q: %w", req.Role, apperr.ErrInvalidArgument)
	}
	serverID := c.Params("serverId")

	// Role changes are admin-only, and never against yourself.
	caller, err := s.store.Members.FindByServerAndProfile(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return fmt.Errorf("not a member: %w", apperr.ErrUnauthorized)
	}
	if err := chat.RequireRole(caller, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.store.Members.UpdateRole(c.Context(), serverID, c.Params("memberId"), s.profileID(c), req.Role); err != nil {
		return err
	}
	server, err := s.store.Servers.GetForMember(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) deleteServer(c *fiber.Ctx) error {
	server, err := s.store.Servers.DeleteOwned(c.Context(), c.Params("serverId"), s.profileID(c))
	if err != nil {
		return err
	}
	if server.ImagePublicID != "" {
		if err := s.objects.Delete(c.Context(), server.ImagePublicID); err != nil {
			s.log.Warnw("delete server image", "server", server.ID, "err", err)
		}
	}
	return c.JSON(server)
}

func (s *Server) leaveServer(c *fiber.Ctx) error {
	server, err := s.store.Servers.Leave(c.Context(), c.Params("serverId"), s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}

func (s *Server) removeMember(c *fiber.Ctx) error {
	serverID := c.Params("serverId")
	if _, err := s.store.Servers.GetOwned(c.Context(), serverID, s.profileID(c)); err != nil {
		return err
	}
	if err := s.store.Members.Remove(c.Context(), serverID, c.Params("memberId"), s.profileID(c)); err != nil {
		return err
	}
	server, err := s.store.Servers.GetForMember(c.Context(), serverID, s.profileID(c))
	if err != nil {
		return err
	}
	return c.JSON(server)
}
