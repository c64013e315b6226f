package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := E(CodeNotFound, "BotService.Get", "bot not found", errors.New("no rows"))
	assert.Equal(t, "BotService.Get: bot not found: no rows", err.Error())

	assert.Equal(t, "UNAVAILABLE", E(CodeUnavailable, "", "", nil).Error())
}

func TestHTTPStatusFollowsWrappedCode(t *testing.T) {
	inner := E(CodeRateLimited, "op", "slow down", nil)
	wrapped := fmt.Errorf("handler: %w", inner)

	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(wrapped))
	assert.True(t, IsCode(wrapped, CodeRateLimited))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.False(t, IsCode(nil, CodeInternal))
}
