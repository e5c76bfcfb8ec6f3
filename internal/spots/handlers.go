package spots

import (
	"errors"
	"strconv"

	"backend-taputapu/internal/navigation"
	"backend-taputapu/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

// Navigator applies a spot to a navigation session as a map tap.
type Navigator interface {
	TapWaypoint(sessionID, deviceID string, p geo.Point) (bool, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, nav Navigator, authMiddleware fiber.Handler) {
	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
		lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
		if err1 != nil || err2 != nil || !(geo.Point{Lat: lat, Lng: lng}).Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)
		kind := Type(c.Query("type"))
		if kind != "" && !kind.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "unknown spot type")
		}
		results, err := svc.Nearby(c.Context(), lat, lng, radius, kind)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(results)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Spot
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy = deviceID(c)
		spot, err := svc.Create(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(spot)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		spot, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(spot)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), deviceID(c)); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/tap", authMiddleware, func(c *fiber.Ctx) error {
		if nav == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "navigation not available")
		}
		var body struct {
			SessionID string `json:"session_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "session_id required")
		}
		spot, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		applied, err := nav.TapWaypoint(body.SessionID, deviceID(c), spot.Point())
		switch {
		case errors.Is(err, navigation.ErrSessionNotFound):
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		case errors.Is(err, navigation.ErrNotOwner):
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.JSON(fiber.Map{"applied": applied, "spot": spot})
	})
}

func deviceID(c *fiber.Ctx) string {
	id, _ := c.Locals("device_id").(string)
	return id
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidSpot):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
