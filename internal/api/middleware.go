package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/HaoyangGuo/oolong/internal/models"
)

const (
	localProfile = "profile"
	localUserID  = "user_id"
)

// Authenticate verifies the bearer token and resolves the subject to a
// profile, provisioning a placeholder one the first time a new identity is
// seen. The gateway handshake does not share this behavior; it requires an
// existing profile.
func (s *Server) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": fiber.StatusUnauthorized, "message": "missing auth"})
		}
		token := strings.TrimPrefix(h, "Bearer ")
		subject, err := s.verifier.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": fiber.StatusUnauthorized, "message": "invalid token"})
		}
		profile, err := s.store.Profiles.FindOrCreate(c.Context(), subject)
		if err != nil {
			return err
		}
		c.Locals(localUserID, subject)
		c.Locals(localProfile, profile)
		return c.Next()
	}
}

func (s *Server) profile(c *fiber.Ctx) *models.Profile {
	p, _ := c.Locals(localProfile).(*models.Profile)
	return p
}

func (s *Server) profileID(c *fiber.Ctx) string {
	p := s.profile(c)
	if p == nil {
		return ""
	}
	return p.ID
}

// rateLimiter builds the per-caller write limiter, or nil when redis is not
// configured. Fixed window, counted in redis so limits hold across restarts.
func (s *Server) rateLimiter() fiber.Handler {
	if s.rdb == nil {
		return nil
	}
	limit := int64(s.cfg.RateLimit.Limit)
	window := s.cfg.RateLimitWindow
	rdb := s.rdb
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:messages:%s:%d", s.profileID(c), time.Now().Unix()/int64(window.Seconds()))
		count, err := rdb.Incr(c.Context(), key).Result()
		if err != nil {
			// Redis failure fails open.
			s.log.Warnw("rate limiter", "err", err)
			return c.Next()
		}
		if count == 1 {
			rdb.Expire(c.Context(), key, window)
		}
		if count > limit {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"status": fiber.StatusTooManyRequests, "message": "rate limit exceeded"})
		}
		return c.Next()
	}
}
