package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestAppError_Unwrap(t *testing.T) {
	err := Conflict("busy", errSentinel)
	wrapped := fmt.Errorf("submit: %w", err)

	assert.ErrorIs(t, wrapped, errSentinel)
	assert.Equal(t, http.StatusConflict, As(wrapped).HTTPStatus)
	assert.Equal(t, "CONFLICT: busy: sentinel", err.Error())
}

func TestAs_WrapsUnknown(t *testing.T) {
	appErr := As(errSentinel)
	assert.Equal(t, ErrCodeInternalError, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.Nil(t, As(nil))
}

func TestNotFound(t *testing.T) {
	err := NotFound("driver", "D042")
	assert.Equal(t, "NOT_FOUND: driver with id 'D042' not found", err.Error())
}
