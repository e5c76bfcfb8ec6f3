package trails

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/search", func(c *fiber.Ctx) error {
		var (
			found []Trail
			err   error
		)
		if c.Query("lat") != "" || c.Query("lng") != "" {
			lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
			lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
			if err1 != nil || err2 != nil {
				return fiber.NewError(fiber.StatusBadRequest, "lat and lng must be numbers")
			}
			found, err = svc.SearchNear(c.Context(), lat, lng)
		} else {
			found, err = svc.Search(c.Context(), c.Query("q"))
		}
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"trails": found})
	})

	r.Get("/favorites", authMiddleware, func(c *fiber.Ctx) error {
		favs, err := svc.Favorites(c.Context(), deviceID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(favs)
	})

	r.Post("/favorites", authMiddleware, func(c *fiber.Ctx) error {
		var t Trail
		if err := c.BodyParser(&t); err != nil || t.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "trail name required")
		}
		favorite, err := svc.ToggleFavorite(c.Context(), deviceID(c), t)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"favorite": favorite, "trail": t})
	})
}

func deviceID(c *fiber.Ctx) string {
	id, _ := c.Locals("device_id").(string)
	return id
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotConfigured):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrNoTrails):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadResponse):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
