package server

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"chatty-relay/errors"
)

var validate = validator.New()

type registerRequest struct {
	Username string `validate:"required,min=1,max=32"`
}

// validateUsername gates registration. The reserved broadcast name and
// the system sender can never be claimed.
func validateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.ErrInvalidUsername
	}
	if err := validate.Struct(registerRequest{Username: username}); err != nil {
		return errors.ErrInvalidUsername
	}
	switch strings.ToLower(username) {
	case "all", "system":
		return errors.ErrInvalidUsername
	}
	return nil
}
