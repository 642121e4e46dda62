package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes account login and the device session. A
// successful register/login also signs the session in, which starts sync.
func RegisterRoutes(r fiber.Router, svc *Service, session *Session, authMiddleware fiber.Handler) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		acct, tokens, err := svc.Register(c.Context(), req)
		if errors.Is(err, ErrAccountsOffline) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		session.SignIn(Identity{ID: acct.ID, DisplayLabel: acct.Label()})
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"account": acct, "tokens": tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		acct, tokens, err := svc.Login(c.Context(), req)
		if errors.Is(err, ErrAccountsOffline) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		session.SignIn(Identity{ID: acct.ID, DisplayLabel: acct.Label()})
		return c.JSON(fiber.Map{"account": acct, "tokens": tokens})
	})

	// Resume a session from a token issued earlier.
	r.Post("/session", authMiddleware, func(c *fiber.Ctx) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "token invalid")
		}
		session.SignIn(id)
		return c.JSON(id)
	})

	r.Get("/session", func(c *fiber.Ctx) error {
		id, _ := session.CurrentUser(c.Context())
		if id == nil {
			return c.JSON(fiber.Map{"signed_in": false})
		}
		return c.JSON(fiber.Map{"signed_in": true, "identity": id})
	})

	r.Post("/logout", func(c *fiber.Ctx) error {
		session.SignOut()
		return c.SendStatus(fiber.StatusNoContent)
	})
}
