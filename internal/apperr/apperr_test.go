package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindPermission, KindOf(Permission("nope")))
	assert.Equal(t, KindConflict, KindOf(Conflict("already done")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("report")))
	assert.Equal(t, KindExternal, KindOf(External("checker down", errors.New("dial tcp"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("while approving: %w", Conflict("illegal transition"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsKind(err, KindConflict))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("x"), http.StatusBadRequest},
		{Permission("x"), http.StatusForbidden},
		{Conflict("x"), http.StatusConflict},
		{NotFound("x"), http.StatusNotFound},
		{External("x", nil), http.StatusBadGateway},
		{errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "report not found", NotFound("report").Error())
	assert.Equal(t, "checker down: dial tcp", External("checker down", errors.New("dial tcp")).Error())

	var e *Error
	wrapped := fmt.Errorf("ctx: %w", External("checker down", errors.New("dial tcp")))
	assert.True(t, errors.As(wrapped, &e))
	assert.EqualError(t, e.Unwrap(), "dial tcp")
}
