package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	cause := errors.New("throttled")
	err := newError(ErrorRateLimited, "openai_rate_limited", cause)
	require.Equal(t, "usecase: RATE_LIMITED (openai_rate_limited): throttled", err.Error())
	require.ErrorIs(t, err, cause)
	require.Equal(t, "usecase: INVALID_INPUT (empty_message)", newError(ErrorInvalidInput, "empty_message", nil).Error())
}

func TestCodeOfAndHTTPStatus(t *testing.T) {
	wrapped := fmt.Errorf("api: %w", newError(ErrorUpstream, "x", nil))
	require.Equal(t, ErrorUpstream, CodeOf(wrapped))
	require.Equal(t, ErrorInternal, CodeOf(errors.New("boom")))

	require.Equal(t, http.StatusBadRequest, ErrorInvalidInput.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, ErrorInvalidQuestion.HTTPStatus())
	require.Equal(t, http.StatusTooManyRequests, ErrorRateLimited.HTTPStatus())
	require.Equal(t, http.StatusBadGateway, ErrorUpstream.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, ErrorInternal.HTTPStatus())
}
