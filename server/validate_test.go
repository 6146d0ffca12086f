package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatty-relay/errors"
)

func TestValidateUsername(t *testing.T) {
	req := require.New(t)

	req.NoError(validateUsername("alice"))
	req.NoError(validateUsername("Alice-42"))

	// Blank and whitespace-only names never register
	req.ErrorIs(validateUsername(""), errors.ErrInvalidUsername)
	req.ErrorIs(validateUsername("   "), errors.ErrInvalidUsername)

	// Too long
	req.ErrorIs(validateUsername(strings.Repeat("x", 33)), errors.ErrInvalidUsername)

	// Reserved names, in any casing
	req.ErrorIs(validateUsername("all"), errors.ErrInvalidUsername)
	req.ErrorIs(validateUsername("ALL"), errors.ErrInvalidUsername)
	req.ErrorIs(validateUsername("System"), errors.ErrInvalidUsername)
}
