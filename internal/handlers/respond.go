package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finplay/settlement/pkg/errors"
	"github.com/finplay/settlement/pkg/logger"
)

// statusFor maps application error codes onto HTTP statuses.
func statusFor(code string) int {
	switch code {
	case errors.ErrCodeValidation:
		return fiber.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return fiber.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return fiber.StatusForbidden
	case errors.ErrCodeNotFound, errors.ErrCodeOrderNotFound, errors.ErrCodeCodeNotFound:
		return fiber.StatusNotFound
	case errors.ErrCodeAlreadyExists, errors.ErrCodeOrderAlreadyDecided,
		errors.ErrCodeAlreadyRedeemed, errors.ErrCodeConfigConflict:
		return fiber.StatusConflict
	case errors.ErrCodeCodeExpired, errors.ErrCodeCodeExhausted:
		return fiber.StatusGone
	case errors.ErrCodeInsufficientFunds:
		return fiber.StatusUnprocessableEntity
	case errors.ErrCodeRateLimitExceeded:
		return fiber.StatusTooManyRequests
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	code := errors.Code(err)
	status := statusFor(code)
	message := "internal error"
	if appErr, ok := err.(*errors.AppError); ok && status != fiber.StatusInternalServerError {
		message = appErr.Message
	}
	if status == fiber.StatusInternalServerError {
		logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

func respondOK(c *fiber.Ctx, payload interface{}) error {
	return c.JSON(fiber.Map{"data": payload})
}

func respondCreated(c *fiber.Ctx, payload interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": payload})
}

func badRequest(c *fiber.Ctx, message string) error {
	return respondError(c, errors.New(errors.ErrCodeValidation, message))
}

func notYours() error {
	return errors.New(errors.ErrCodeForbidden, "order belongs to another user")
}
