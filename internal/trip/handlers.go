package trip

import (
	"errors"
	"time"

	"backend-taputapu/internal/navigation"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type createRequest struct {
	Name            string      `json:"name"`
	Mode            string      `json:"mode"`
	RecordedAt      time.Time   `json:"recorded_at"`
	DurationSeconds float64     `json:"duration_s"`
	Path            []geo.Point `json:"path"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req createRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Mode == "" {
			req.Mode = string(routing.Walking)
		}
		mode, err := routing.ParseMode(req.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.RecordedAt.IsZero() {
			req.RecordedAt = time.Now().UTC()
		}
		distance := geo.PathLength(req.Path)
		pace := navigation.NoPace
		if req.DurationSeconds > 0 {
			pace = navigation.FormatPace(distance / req.DurationSeconds)
		}
		trip, err := svc.Save(c.Context(), Trip{
			DeviceID:        deviceID(c),
			Name:            req.Name,
			Mode:            mode,
			RecordedAt:      req.RecordedAt,
			DistanceMeters:  distance,
			DurationSeconds: req.DurationSeconds,
			Pace:            pace,
			Calories:        navigation.Calories(distance, mode),
			Path:            req.Path,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trip)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		trips, err := svc.List(c.Context(), deviceID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(trips)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		trip, err := ownedTrip(c, svc)
		if err != nil {
			return err
		}
		return c.JSON(trip)
	})

	r.Get("/:id/gpx", authMiddleware, func(c *fiber.Ctx) error {
		trip, err := ownedTrip(c, svc)
		if err != nil {
			return err
		}
		doc, err := GPX(trip)
		if err != nil {
			return httpError(err)
		}
		c.Attachment(trip.ID + ".gpx")
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.Send(doc)
	})

	r.Patch("/:id", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name required")
		}
		if err := svc.Rename(c.Context(), c.Params("id"), deviceID(c), body.Name); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id"), deviceID(c)); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func deviceID(c *fiber.Ctx) string {
	id, _ := c.Locals("device_id").(string)
	return id
}

// ownedTrip hides trips of other devices behind a 404.
func ownedTrip(c *fiber.Ctx, svc *Service) (Trip, error) {
	trip, err := svc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return Trip{}, httpError(err)
	}
	if trip.DeviceID != deviceID(c) {
		return Trip{}, fiber.NewError(fiber.StatusNotFound, ErrNotFound.Error())
	}
	return trip, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrTooShort), errors.Is(err, ErrNoDevice), errors.Is(err, ErrBadCoords):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
