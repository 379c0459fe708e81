package itinerary

import (
	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the itinerary endpoints under the trips group.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:id/itinerary", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		it, err := svc.List(c.UserContext(), session, c.Params("id"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(it)
	})

	r.Post("/:id/itinerary", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		var req AddLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := validate.Struct(req); err != nil {
			return apperr.HTTP(err)
		}
		loc, err := svc.AddLocation(c.UserContext(), session, c.Params("id"), req.Address)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	r.Post("/:id/itinerary/reorder", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		var req ReorderRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if req.OrderedLocationIDs == nil {
			return apperr.HTTP(apperr.Validation("orderedLocationIds", "is required"))
		}
		locations, err := svc.Reorder(c.UserContext(), session, c.Params("id"), req.OrderedLocationIDs)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"locations": locations})
	})

	r.Delete("/:id/itinerary/:locationID", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		locations, err := svc.RemoveLocation(c.UserContext(), session, c.Params("id"), c.Params("locationID"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(fiber.Map{"locations": locations})
	})
}
