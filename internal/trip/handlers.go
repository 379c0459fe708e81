package trip

import (
	"time"

	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

var nowFn = time.Now

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		var req TripInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		trip, err := svc.CreateTrip(c.UserContext(), session.UserID, req)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trip)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		trips, err := svc.ListTrips(c.UserContext(), session.UserID)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(trips)
	})

	r.Get("/dashboard", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		dash, err := svc.Dashboard(c.UserContext(), session.UserID, nowFn())
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(dash)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		detail, err := svc.GetTrip(c.UserContext(), session.UserID, c.Params("id"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(detail)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		var req TripInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		trip, err := svc.UpdateTrip(c.UserContext(), session.UserID, c.Params("id"), req)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(trip)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		if err := svc.DeleteTrip(c.UserContext(), session.UserID, c.Params("id")); err != nil {
			return apperr.HTTP(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
