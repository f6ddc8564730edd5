package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/oauth"
	"regulie/therapy-app/internal/repository"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: firstName is required", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: bad sig", billing.ErrInvalidSignature), http.StatusBadRequest},
		{service.ErrAuthenticationFailed, http.StatusUnauthorized},
		{fmt.Errorf("%w: expired", oauth.ErrInvalidToken), http.StatusUnauthorized},
		{&service.LimitExceededError{Resource: domain.ResourceClients, Tier: domain.TierFree, Limit: 5}, http.StatusForbidden},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrClientNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", repository.ErrNotFound), http.StatusNotFound},
		{service.ErrUserAlreadyExists, http.StatusConflict},
		{service.ErrRequestNotPending, http.StatusConflict},
		{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{oauth.ErrNotConfigured, http.StatusServiceUnavailable},
		{errors.New("connection reset by peer"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func runRespondError(err error) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, err)
	return rec
}

func TestRespondError_LimitExceeded(t *testing.T) {
	rec := runRespondError(&service.LimitExceededError{Resource: domain.ResourceSessions, Tier: domain.TierFree, Limit: 30})

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "limit_exceeded", body["code"])
	assert.Equal(t, "sessions", body["resource"])
	assert.Equal(t, "free", body["tier"])
	assert.EqualValues(t, 30, body["limit"])
}

func TestRespondError_InternalErrorsAreNotLeaked(t *testing.T) {
	rec := runRespondError(errors.New("mongo: server selection timeout on 10.0.0.7"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	assert.Contains(t, rec.Body.String(), "An unexpected error occurred")
}

func TestRespondError_KnownErrorMessage(t *testing.T) {
	rec := runRespondError(service.ErrTemplateNameTaken)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"a template with this name already exists"}`, rec.Body.String())
}
