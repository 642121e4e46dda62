package search

import (
	"strconv"

	"backend-cragmap/internal/catalog"

	"github.com/gofiber/fiber/v2"
)

func criteriaFrom(c *fiber.Ctx) Criteria {
	var cats []string
	for _, v := range c.Context().QueryArgs().PeekMulti("category") {
		cats = append(cats, string(v))
	}
	return Criteria{
		Region:     c.Query("region"),
		Categories: cats,
		Difficulty: c.Query("difficulty"),
		Text:       c.Query("q"),
	}
}

// RegisterRoutes exposes catalog browsing: filtering, suggestions, derived
// options and map viewports.
func RegisterRoutes(r fiber.Router, cat *catalog.Catalog) {
	r.Get("/", func(c *fiber.Ctx) error {
		sites := Filter(cat.Sites(), criteriaFrom(c))
		return c.JSON(fiber.Map{"sites": sites, "count": len(sites), "loading": cat.Loading()})
	})

	r.Get("/suggest", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", DefaultSuggestLimit)
		if limit <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be positive")
		}
		return c.JSON(fiber.Map{"sites": Suggest(cat.Sites(), c.Query("q"), limit)})
	})

	r.Get("/options", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"options": cat.Options(), "loading": cat.Loading()})
	})

	r.Get("/region", func(c *fiber.Ctx) error {
		crit := criteriaFrom(c)
		sites := cat.Sites()
		return c.JSON(fiber.Map{
			"bounds": BoundingRegion(Filter(sites, crit)),
			"focus":  FocusRegion(sites, crit.Region),
		})
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng are required")
		}
		radius := 25.0
		if raw := c.Query("radius_km"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid radius_km")
			}
			radius = v
		}
		return c.JSON(fiber.Map{"sites": Nearby(cat.Sites(), lat, lng, radius)})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		site, ok := cat.Site(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "site not found")
		}
		return c.JSON(fiber.Map{
			"site":    site,
			"focus":   FocusSite(site),
			"map_url": MapURL(site),
		})
	})
}
