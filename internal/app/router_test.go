package app

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"session-service/internal/config"
	"session-service/internal/db"
	domain "session-service/internal/domain/session"
	authHandler "session-service/internal/handlers/auth"
	sessionHandler "session-service/internal/handlers/session"
	wsHandler "session-service/internal/handlers/websocket"
	"session-service/internal/middleware"
	"session-service/internal/pkg/jwt"
	"session-service/internal/pkg/session"
	authUsecase "session-service/internal/service/auth"
	"session-service/internal/websocket"
)

const testServiceKey = "collaborator-key"

func newTestEngine(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	return newTestEngineWithKey(t, testServiceKey)
}

func newTestEngineWithKey(t *testing.T, serviceKey string) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	manager := jwt.NewManager(priv, &priv.PublicKey, jwt.Config{Issuer: "session-service", Audience: "portal", TTL: time.Hour})

	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	hub := websocket.NewHub(logger)
	store := session.NewStore(client, logger,
		session.WithNotifier(hub),
		session.WithMetrics(session.NewMetrics(registry)),
	)
	authService := authUsecase.NewAuthService(store, session.NewTokenStore(client, 0), manager, 720*time.Hour, logger)

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(logger), middleware.NewHTTPMetrics(registry).Middleware())
	SetupRouter(engine, &Handlers{
		SessionHandler: sessionHandler.NewSessionHandler(store, nil, logger),
		AuthHandler:    authHandler.NewAuthHandler(authService, logger),
		WSHandler:      wsHandler.NewWebSocketHandler(hub, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		ServiceAuth:    middleware.ServiceAuth(serviceKey),
		RefreshLimit:   middleware.RateLimitByIP(session.NewRateLimiter(client, 2, time.Minute), "refresh", logger),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Health:         db.RedisHealthcheck(client),
	})
	return engine, mr
}

func doRequest(engine *gin.Engine, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	return doRequestWithHeaders(engine, method, target, token, body, nil)
}

func doRequestWithHeaders(engine *gin.Engine, method, target, token string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	buf := &bytes.Buffer{}
	if body != nil {
		_ = json.NewEncoder(buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, engine *gin.Engine, user domain.User) domain.TokenResponse {
	t.Helper()
	w := doRequestWithHeaders(engine, http.MethodPost, "/api/v1/auth/sessions", "", domain.CreateSessionRequest{User: user},
		map[string]string{middleware.ServiceKeyHeader: testServiceKey})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env struct {
		Data domain.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func TestAdminRoutesRequireRole(t *testing.T) {
	engine, _ := newTestEngine(t)

	admin := login(t, engine, domain.User{ID: "a1", Role: middleware.RoleSystemAdmin})
	member := login(t, engine, domain.User{ID: "u1", Role: "MEMBER"})

	assert.Equal(t, http.StatusUnauthorized, doRequest(engine, http.MethodGet, "/api/v1/sessions", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(engine, http.MethodGet, "/api/v1/sessions", member.AccessToken, nil).Code)

	w := doRequest(engine, http.MethodGet, "/api/v1/sessions", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"activeUsers":2,"activeSessions":2}`, extractData(t, w))

	assert.Equal(t, http.StatusNotFound, doRequest(engine, http.MethodGet, "/api/v1/sessions/events", admin.AccessToken, nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/v1/sessions/ws-stats", admin.AccessToken, nil).Code)
}

func TestSessionIssuingRequiresServiceKey(t *testing.T) {
	engine, _ := newTestEngine(t)
	victim := login(t, engine, domain.User{ID: "victim"})

	forged := domain.CreateSessionRequest{User: domain.User{ID: "attacker", Role: middleware.RoleSystemAdmin}}
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "no credential"},
		{name: "wrong credential", headers: map[string]string{middleware.ServiceKeyHeader: "guess"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequestWithHeaders(engine, http.MethodPost, "/api/v1/auth/sessions", "", forged, tt.headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotContains(t, w.Body.String(), "accessToken")
		})
	}

	w := doRequest(engine, http.MethodDelete, "/api/v1/sessions?userId=victim", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(engine, http.MethodPost, "/api/v1/sessions", "", domain.ValidateRequest{SessionID: victim.SessionID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionIssuingDisabledWithoutKey(t *testing.T) {
	engine, mr := newTestEngineWithKey(t, "")

	w := doRequestWithHeaders(engine, http.MethodPost, "/api/v1/auth/sessions", "",
		domain.CreateSessionRequest{User: domain.User{ID: "attacker", Role: middleware.RoleSystemAdmin}},
		map[string]string{middleware.ServiceKeyHeader: ""})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mr.Keys())
}

func TestCollaboratorRoutesAreOpen(t *testing.T) {
	engine, _ := newTestEngine(t)
	tokens := login(t, engine, domain.User{ID: "u1"})

	w := doRequest(engine, http.MethodPost, "/api/v1/sessions", "", domain.ValidateRequest{SessionID: tokens.SessionID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(engine, http.MethodPut, "/api/v1/sessions", "", domain.ExtendRequest{SessionID: tokens.SessionID})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshIsRateLimited(t *testing.T) {
	engine, _ := newTestEngine(t)

	for i := 0; i < 2; i++ {
		w := doRequest(engine, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshRequest{RefreshToken: "unknown"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := doRequest(engine, http.MethodPost, "/api/v1/auth/refresh", "", domain.RefreshRequest{RefreshToken: "unknown"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	engine, mr := newTestEngine(t)

	assert.Equal(t, http.StatusOK, doRequest(engine, http.MethodGet, "/api/v1/health", "", nil).Code)

	w := doRequest(engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(engine, http.MethodGet, "/api/v1/health", "", nil).Code)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{AppEnv: "production", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	_, err = NewLogger(config.AppConfig{LogLevel: "loud"})
	assert.Error(t, err)
}

func extractData(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return string(env.Data)
}
