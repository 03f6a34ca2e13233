package middleware

import (
	"errors"
	"log"

	"vinotheque/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler returns the Fiber error handler translating errors into
// {"erreur": ...} bodies. Debug details are only added when verbose is set.
func ErrorHandler(verbose bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if apiErr, ok := apperror.As(err); ok {
			body := fiber.Map{"erreur": apiErr.Message}
			if verbose {
				body["stack"] = apiErr.StackTrace()
			}
			return c.Status(apiErr.Status).JSON(body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"erreur": fiberErr.Message})
		}

		log.Printf("Unexpected error on %s %s: %v", c.Method(), c.Path(), err)
		body := fiber.Map{"erreur": "Erreur serveur interne"}
		if verbose {
			body["message"] = err.Error()
			if stack := apperror.Stack(err); stack != "" {
				body["stack"] = stack
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
}

// NotFound answers any request that matched no route.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"erreur": "Route non trouvée",
		"chemin": c.Path(),
	})
}
