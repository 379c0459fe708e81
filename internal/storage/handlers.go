package storage

import (
	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		session, err := auth.RequireSession(c)
		if err != nil {
			return apperr.HTTP(err)
		}
		var body struct {
			FileName string `json:"file_name"`
			Kind     string `json:"kind"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
			}
		}
		obj, err := svc.SaveObject(c.UserContext(), session.UserID, body.FileName, body.Kind)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(obj)
	})
}
