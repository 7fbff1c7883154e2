// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/amirphl/homecare-hr/app/dto"
	"github.com/amirphl/homecare-hr/app/services"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware guards the cron trigger endpoints with the shared cron secret
// and the report endpoints with operator JWTs
type AuthMiddleware struct {
	tokenService services.TokenService
	cronSecret   []byte
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, cronSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		cronSecret:   []byte(cronSecret),
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

// bearerToken extracts the bearer credential, writing the 401 response when it is absent
func bearerToken(c fiber.Ctx) (string, bool, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false, unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false, unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false, unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
	}
	return token, true, nil
}

// CronAuthenticate checks the bearer credential against the cron secret in constant time
func (m *AuthMiddleware) CronAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok, err := bearerToken(c)
		if !ok {
			return err
		}

		if len(m.cronSecret) == 0 || subtle.ConstantTimeCompare([]byte(token), m.cronSecret) != 1 {
			return unauthorized(c, "Invalid cron secret", "INVALID_CRON_SECRET")
		}

		return c.Next()
	}
}

// Authenticate validates operator JWTs for the report endpoints
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok, err := bearerToken(c)
		if !ok {
			return err
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals("operator", claims.Subject)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)

		return c.Next()
	}
}
