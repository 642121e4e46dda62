package syncer

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

type favoriteRequest struct {
	SiteName   string `json:"siteName"`
	RouteName  string `json:"routeName"`
	Difficulty string `json:"difficulty"`
	SiteURL    string `json:"siteUrl"`
}

// RegisterFavoriteRoutes exposes the favorites collection.
func RegisterFavoriteRoutes(r fiber.Router, favs *Favorites) {
	r.Get("/", func(c *fiber.Ctx) error {
		site, route := c.Query("site"), c.Query("route")
		if site != "" && route != "" {
			return c.JSON(fiber.Map{"favorite": favs.IsFavorite(site, route), "id": FavoriteID(site, route)})
		}
		items := favs.Records()
		if site != "" {
			items = favs.BySite(site)
		}
		return c.JSON(fiber.Map{"favorites": items, "loading": favs.Loading()})
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req favoriteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		fav, added, err := favs.Add(c.Context(), req.SiteName, req.RouteName, req.Difficulty, req.SiteURL)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		status := fiber.StatusCreated
		if !added {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(fav)
	})

	r.Post("/toggle", func(c *fiber.Ctx) error {
		var req favoriteRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		on, err := favs.Toggle(c.Context(), req.SiteName, req.RouteName, req.Difficulty, req.SiteURL)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"favorite": on, "id": FavoriteID(req.SiteName, req.RouteName)})
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if !favs.Remove(c.Context(), pathID(c)) {
			return fiber.NewError(fiber.StatusNotFound, "favorite not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// RegisterLogRoutes exposes the climbing-log collection.
func RegisterLogRoutes(r fiber.Router, logs *Logs) {
	r.Get("/", func(c *fiber.Ctx) error {
		site, route := c.Query("site"), c.Query("route")
		if site != "" && route != "" {
			items := logs.ForRoute(site, route)
			return c.JSON(fiber.Map{"logs": items, "climbed": len(items) > 0})
		}
		return c.JSON(fiber.Map{"logs": logs.Records(), "loading": logs.Loading()})
	})

	r.Post("/", func(c *fiber.Ctx) error {
		var req Log
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		lg, err := logs.Add(c.Context(), req)
		if errors.Is(err, ErrInvalidRecord) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(lg)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		if !logs.Remove(c.Context(), pathID(c)) {
			return fiber.NewError(fiber.StatusNotFound, "log not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// pathID unescapes :id, since log ids embed free-text site and route names.
// The result is copied out of fiber's pooled buffer because removals keep the
// id for a background remote delete.
func pathID(c *fiber.Ctx) string {
	raw := utils.CopyString(c.Params("id"))
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}
