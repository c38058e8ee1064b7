package storage

import (
	"errors"

	"backend-barrierfree/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/photos", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		if fh.Size > MaxPhotoBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, ErrTooLarge.Error())
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer f.Close()

		obj, err := svc.UploadPhoto(c.Context(), auth.UserID(c), fh.Header.Get("Content-Type"), f)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})

	r.Post("/presign", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			ContentType string `json:"content_type"`
			Size        int64  `json:"size"`
		}
		if err := c.BodyParser(&body); err != nil || body.ContentType == "" {
			return fiber.NewError(fiber.StatusBadRequest, "content_type required")
		}
		out, err := svc.Presign(c.Context(), auth.UserID(c), body.ContentType, body.Size)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(out)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrSizeRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
