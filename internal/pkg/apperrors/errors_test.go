package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTypeThroughWrapping(t *testing.T) {
	base := New(ErrStateUnavailable, "nonce unavailable", errors.New("no contract code at given address"))
	wrapped := fmt.Errorf("prepare: %w", base)

	assert.True(t, IsType(wrapped, ErrStateUnavailable))
	assert.False(t, IsType(wrapped, ErrTransientRead))
	assert.Equal(t, http.StatusServiceUnavailable, base.HTTPStatus)
}

func TestWithStepKeepsFirstStep(t *testing.T) {
	err := New(ErrExecution, "reverted", nil).WithStep("permission_setup").WithStep("onboard")
	assert.Equal(t, "permission_setup", err.Step)
	assert.Equal(t, "permission_setup: reverted", err.Error())
}

func TestWrapKeepsAppError(t *testing.T) {
	orig := NewConfiguration("missing operator key").WithDetail("chain_id", "137")
	got := Wrap(fmt.Errorf("load: %w", orig))
	assert.Same(t, orig, got)
	assert.Equal(t, "137", got.Details["chain_id"])

	plain := Wrap(errors.New("boom"))
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Nil(t, Wrap(nil))
}
