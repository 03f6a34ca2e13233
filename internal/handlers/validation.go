package handlers

import (
	"errors"
	"strings"

	"vinotheque/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// fieldMessages maps "Field.tag" to the message returned to the client.
var fieldMessages = map[string]string{
	"Email.required":    "Format email invalide",
	"Email.email":       "Format email invalide",
	"Password.required": "Mot de passe requis",
	"Password.min":      "Le mot de passe doit contenir au moins 8 caractères",
	"Name.max":          "Le nom ne doit pas dépasser 255 caractères",
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// bind parses the JSON body of c into req and validates it.
func (v *requestValidator) bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperror.BadRequest("Corps de requête invalide")
	}
	return v.check(req)
}

func (v *requestValidator) check(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msg, ok := fieldMessages[e.Field()+"."+e.Tag()]
		if !ok {
			msg = "Champ " + strings.ToLower(e.Field()) + " invalide"
		}
		messages = append(messages, msg)
	}
	return apperror.BadRequest(strings.Join(messages, ", "))
}
