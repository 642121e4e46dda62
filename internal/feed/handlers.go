package feed

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/", func(c *fiber.Ctx) error {
		if !svc.Loaded() {
			svc.Refresh(c.Context())
		}
		return c.JSON(fiber.Map{"activities": svc.Activities()})
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		items, err := svc.Refresh(c.Context())
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"activities": items,
				"error":      "feed unavailable, showing cached activities",
			})
		}
		return c.JSON(fiber.Map{"activities": items})
	})
}
