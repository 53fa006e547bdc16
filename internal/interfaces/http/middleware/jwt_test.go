package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
)

func newJWT() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{Secret: "test-secret-with-enough-length", Issuer: "stockledger"})
}

func authEngine(svc *auth.JWTService, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), JWTAuth(svc, zap.NewNop()))
	handlers := append(extra, func(c *gin.Context) {
		op, _ := GetOperator(c)
		c.JSON(http.StatusOK, gin.H{
			"operator":     op,
			"ctx_operator": logger.GetOperatorID(c.Request.Context()),
		})
	})
	r.GET("/secure", handlers...)
	return r
}

func bearer(t *testing.T, svc *auth.JWTService, op shared.Operator, ttl time.Duration) string {
	t.Helper()
	token, err := svc.Issue(op, ttl)
	require.NoError(t, err)
	return BearerPrefix + token
}

func TestJWTAuth(t *testing.T) {
	svc := newJWT()
	r := authEngine(svc)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "missing header", wantCode: http.StatusUnauthorized, wantBody: "ERR_UNAUTHORIZED"},
		{name: "wrong scheme", header: "Basic abc", wantCode: http.StatusUnauthorized, wantBody: "ERR_UNAUTHORIZED"},
		{name: "garbage token", header: "Bearer not.a.token", wantCode: http.StatusUnauthorized, wantBody: "ERR_TOKEN_INVALID"},
		{name: "expired", header: bearer(t, svc, shared.Operator{ID: "op-1"}, -time.Hour),
			wantCode: http.StatusUnauthorized, wantBody: "ERR_TOKEN_EXPIRED"},
		{name: "valid", header: bearer(t, svc, shared.Operator{ID: "op-1", Name: "Anna"}, time.Hour),
			wantCode: http.StatusOK, wantBody: `"ctx_operator":"op-1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	svc := newJWT()
	r := authEngine(svc, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(AuthHeaderKey, bearer(t, svc, shared.Operator{ID: "op-2"}, time.Hour))
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_FORBIDDEN")

	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set(AuthHeaderKey, bearer(t, svc, shared.Operator{ID: "op-3", Admin: true}, time.Hour))
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin":true`)
}

func TestRequireAdmin_WithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
