package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	sentinel := New(KindNotFound, "course not found")
	wrapped := fmt.Errorf("loading: %w", NotFound("other message"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, New(KindForbidden, "")))
}

func TestKindOfAndMessage(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	assert.Equal(t, KindPaymentFailed, KindOf(Wrap(KindPaymentFailed, "try again", cause)))
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, "try again", Message(Wrap(KindPaymentFailed, "try again", cause)))
	assert.Equal(t, "Internal server error", Message(cause))
	assert.Equal(t, "Internal server error", Message(Internal("db down", cause)))
	assert.ErrorIs(t, Wrap(KindPaymentFailed, "x", cause), cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAlreadyPurchased, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindExpired, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindDuplicateIdentity, http.StatusConflict},
		{KindConflictingPayment, http.StatusConflict},
		{KindPaymentFailed, http.StatusPaymentRequired},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.kind), string(tt.kind))
	}
}

func TestFromValidator(t *testing.T) {
	type input struct {
		Email string `validate:"required,email"`
	}
	err := validator.New().Struct(input{Email: "nope"})

	appErr := FromValidator(err)
	assert.Equal(t, KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Message, "Email")

	other := FromValidator(errors.New("boom"))
	assert.Equal(t, KindValidation, other.Kind)
	assert.Equal(t, "Invalid input", other.Message)
}
