package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// Auth context keys
const (
	OperatorKey   = "operator"
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates operator tokens issued upstream
type TokenValidator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// JWTAuth requires a valid bearer token and stores the operator on both the
// gin context and the request context
func JWTAuth(validator TokenValidator, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortUnauthorized(c, log, dto.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, log, dto.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := validator.Validate(strings.TrimSpace(token))
		if err != nil {
			code, msg := dto.ErrCodeTokenInvalid, "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				code, msg = dto.ErrCodeTokenExpired, "Token has expired"
			}
			abortUnauthorized(c, log, code, msg, err)
			return
		}

		op := claims.Operator()
		c.Set(JWTClaimsKey, claims)
		c.Set(OperatorKey, op)

		ctx := c.Request.Context()
		ctx, _ = logger.WithOperatorID(ctx, logger.FromContext(ctx), op.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, code, message string, err error) {
	log.Warn("Operator authentication failed",
		zap.String("path", c.Request.URL.Path),
		zap.String("reason", message),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message, GetRequestID(c)))
}

// RequireAdmin lets only operators with the admin claim through. It must
// run after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := GetOperator(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
				dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		if !op.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
				dto.ErrCodeForbidden, "Administrator rights required", GetRequestID(c)))
			return
		}
		c.Next()
	}
}

// GetOperator returns the authenticated operator
func GetOperator(c *gin.Context) (shared.Operator, bool) {
	v, ok := c.Get(OperatorKey)
	if !ok {
		return shared.Operator{}, false
	}
	op, ok := v.(shared.Operator)
	return op, ok
}
