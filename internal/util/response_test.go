package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrTestNotFound, http.StatusNotFound},
		{ErrEmailInUse, http.StatusConflict},
		{ErrLoginLocked, http.StatusLocked},
		{ErrVerificationLocked, http.StatusLocked},
		{ErrPremiumTest, http.StatusForbidden},
		{ErrResendCooldown, http.StatusTooManyRequests},
		{ErrSendEmail, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", ErrAttemptNotCompleted), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusFor(tc.err), tc.err.Error())
	}
}

func TestKindErrorsUnwrap(t *testing.T) {
	assert.ErrorIs(t, ErrTestNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrDeviceInUse, ErrDeviceConflict)
	assert.NotErrorIs(t, ErrTestNotFound, ErrConflict)
	assert.Equal(t, "Test not found", ErrTestNotFound.Error())
}

func TestHandleErrorWritesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleError(c, ErrResendCooldown)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "Please wait before requesting a new code", body.Message)
}
