package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olympiadqr/backend/internal/auth"
	"github.com/olympiadqr/backend/internal/config"
	"github.com/olympiadqr/backend/internal/jobs"
	"github.com/olympiadqr/backend/internal/metrics"
	"github.com/olympiadqr/backend/internal/objstore"
	"github.com/olympiadqr/backend/internal/seating"
	"github.com/olympiadqr/backend/internal/service"
	"github.com/olympiadqr/backend/internal/sheet"
	"github.com/olympiadqr/backend/internal/store"
	"github.com/olympiadqr/backend/internal/token"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.SecretKey = "api-test-jwt-secret"
	cfg.Tokens.HMACSecretKey = strings.Repeat("k", 32)

	tokens, err := token.NewService(cfg.Tokens.HMACSecretKey)
	require.NoError(t, err)

	return NewServer(service.Deps{
		Store:    store.NewMemory(),
		Tokens:   tokens,
		Queue:    jobs.NewMemoryQueue(),
		Objects:  objstore.NewMemory(),
		Renderer: sheet.NewPDFRenderer(),
		Seating:  seating.NewScheduler(),
		JWT:      auth.NewManager(cfg.Auth.SecretKey, cfg.Auth.JWTExpireMinutes),
		Cfg:      cfg,
		Metrics:  metrics.New(),
	})
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:12345"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestServer(t).Router()

	rec := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = do(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	router := newTestServer(t).Router()

	rec := do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "alice@olymp.test",
		"password":  "long-enough-password",
		"full_name": "Alice Ivanova",
		"school":    "School No. 1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	tok, _ := body["access_token"].(string)
	require.NotEmpty(t, tok)
	assert.Equal(t, "bearer", body["token_type"])

	// Duplicate email conflicts.
	rec = do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "alice@olymp.test",
		"password":  "long-enough-password",
		"full_name": "Alice Again",
		"school":    "School No. 1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@olymp.test", decode(t, rec)["email"])

	rec = do(t, router, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGates(t *testing.T) {
	router := newTestServer(t).Router()

	rec := do(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "alice@olymp.test",
		"password":  "long-enough-password",
		"full_name": "Alice Ivanova",
		"school":    "School No. 1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tok := decode(t, rec)["access_token"].(string)

	// Participants cannot create competitions.
	rec = do(t, router, http.MethodPost, "/api/v1/competitions", tok, map[string]interface{}{
		"name": "City Mathematics Olympiad",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Anonymous listing is public.
	rec = do(t, router, http.MethodGet, "/api/v1/competitions", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	router := newTestServer(t).Router()

	rec := do(t, router, http.MethodGet, "/api/v1/competitions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decode(t, rec)["kind"])

	rec = do(t, router, http.MethodGet, fmt.Sprintf("/api/v1/competitions/%s", "00000000-0000-0000-0000-000000000001"), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "limits are per key")
}
