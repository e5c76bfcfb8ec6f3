package navigation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"backend-taputapu/internal/location"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

// TripSaver persists a finished recording and returns the new trip id.
type TripSaver interface {
	SaveRecording(ctx context.Context, deviceID string, rec Recording) (string, error)
}

type fixRequest struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  float64   `json:"accuracy_m"`
	SpeedMps   *float64  `json:"speed_mps"`
	HeadingDeg *float64  `json:"heading_deg"`
	Timestamp  time.Time `json:"timestamp"`
	Manual     bool      `json:"manual"`
}

type locationErrorRequest struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

func RegisterRoutes(r fiber.Router, reg *Registry, saver TripSaver, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Mode string `json:"mode"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		s, err := reg.Create(deviceID(c), TravelMode(body.Mode))
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(s.Snapshot())
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		s, err := reg.Get(c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Delete("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		if _, err := owned(c, reg); err != nil {
			return err
		}
		if err := reg.Close(c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/sessions/:id/fixes", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		fix := location.Fix{
			Point:          geo.Point{Lat: req.Lat, Lng: req.Lng},
			AccuracyMeters: req.AccuracyM,
			Speed:          req.SpeedMps,
			Heading:        req.HeadingDeg,
			Timestamp:      req.Timestamp,
		}
		if err := fix.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Manual {
			if err := s.SetManualPosition(fix.Point); err != nil {
				return httpError(err)
			}
		} else if !s.Source().Push(fix) {
			return fiber.NewError(fiber.StatusConflict, "location watch is not active")
		}
		return c.Status(fiber.StatusAccepted).JSON(s.Snapshot())
	})

	r.Post("/sessions/:id/location-errors", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var req locationErrorRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !s.Source().Fail(location.ParseError(req.Code, req.Name)) {
			return fiber.NewError(fiber.StatusConflict, "location watch is not active")
		}
		return c.Status(fiber.StatusAccepted).JSON(s.Snapshot())
	})

	r.Post("/sessions/:id/tracking", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		if err := s.StartTracking(); err != nil {
			return httpError(err)
		}
		return c.JSON(s.Snapshot())
	})

	r.Delete("/sessions/:id/tracking", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		s.StopTracking()
		return c.JSON(s.Snapshot())
	})

	r.Put("/sessions/:id/waypoints", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var body struct {
			Points []geo.Point `json:"points"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respond(c, s, s.SetWaypoints(body.Points))
	})

	r.Post("/sessions/:id/waypoints", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var p geo.Point
		if err := c.BodyParser(&p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respond(c, s, s.AppendWaypoint(p))
	})

	r.Delete("/sessions/:id/waypoints/last", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.UndoLast())
	})

	r.Put("/sessions/:id/waypoints/:index", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "index must be an integer")
		}
		var p geo.Point
		if err := c.BodyParser(&p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respond(c, s, s.MoveWaypoint(index, p))
	})

	r.Post("/sessions/:id/taps", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var p geo.Point
		if err := c.BodyParser(&p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		applied, err := s.Tap(p)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"applied": applied, "session": s.Snapshot()})
	})

	r.Delete("/sessions/:id/route", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.ClearRoute())
	})

	r.Put("/sessions/:id/mode", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var body struct {
			Mode string `json:"mode"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		mode, err := routing.ParseMode(body.Mode)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respond(c, s, s.SetTravelMode(mode))
	})

	r.Put("/sessions/:id/builder", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return respond(c, s, s.SetBuilderMode(body.Enabled))
	})

	r.Put("/sessions/:id/selection", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		var body struct {
			Index *int `json:"index"`
		}
		if err := c.BodyParser(&body); err != nil || body.Index == nil {
			return fiber.NewError(fiber.StatusBadRequest, "index required")
		}
		return respond(c, s, s.SelectCandidate(*body.Index))
	})

	r.Get("/sessions/:id/candidates/:candidate/legs/:leg", func(c *fiber.Ctx) error {
		s, err := reg.Get(c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		candidate, err1 := strconv.Atoi(c.Params("candidate"))
		leg, err2 := strconv.Atoi(c.Params("leg"))
		if err1 != nil || err2 != nil {
			return fiber.NewError(fiber.StatusBadRequest, "candidate and leg must be integers")
		}
		view, err := s.Leg(candidate, leg)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(view)
	})

	r.Post("/sessions/:id/navigation", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.StartNavigation())
	})

	r.Delete("/sessions/:id/navigation", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.StopNavigation())
	})

	r.Post("/sessions/:id/assistance", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		sos, err := s.EnterAssistance()
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sos)
	})

	r.Delete("/sessions/:id/assistance", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.ExitAssistance())
	})

	r.Post("/sessions/:id/recording", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		return respond(c, s, s.StartRecording())
	})

	r.Delete("/sessions/:id/recording", authMiddleware, func(c *fiber.Ctx) error {
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		rec, ok, err := s.StopRecording()
		if err != nil {
			return httpError(err)
		}
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "not recording")
		}
		return c.JSON(rec)
	})

	r.Post("/sessions/:id/recording/save", authMiddleware, func(c *fiber.Ctx) error {
		if saver == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "trip storage not configured")
		}
		s, err := owned(c, reg)
		if err != nil {
			return err
		}
		rec, ok := s.PeekRecording()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "not recording")
		}
		if len(rec.Path) < 2 {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "recording has too few points to save")
		}
		owner := s.DeviceID
		if owner == "" {
			owner = deviceID(c)
		}
		id, err := saver.SaveRecording(c.Context(), owner, rec)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if _, _, err := s.StopRecording(); err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"trip_id": id, "recording": rec})
	})

	r.Get("/sessions/:id/stats", func(c *fiber.Ctx) error {
		s, err := reg.Get(c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		stats, ok := s.Stats()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "not navigating")
		}
		return c.JSON(stats)
	})
}

func deviceID(c *fiber.Ctx) string {
	id, _ := c.Locals("device_id").(string)
	return id
}

// owned loads the session and checks that the caller's device owns it.
func owned(c *fiber.Ctx, reg *Registry) (*Session, error) {
	s, err := reg.Owned(c.Params("id"), deviceID(c))
	if err != nil {
		return nil, httpError(err)
	}
	return s, nil
}

func respond(c *fiber.Ctx, s *Session, err error) error {
	if err != nil {
		return httpError(err)
	}
	return c.JSON(s.Snapshot())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrSessionClosed):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case err == errAssistanceActive:
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	switch KindOf(err) {
	case IndexOutOfRange:
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case NoRoute:
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case InvalidInput:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case PermissionDenied:
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case LocationTimeout, LocationUnavailable:
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
