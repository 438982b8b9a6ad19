package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireParticipantJWT validates a participant JWT from the Authorization header.
func RequireParticipantJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeParticipant, response.ErrParticipantAccessOnly, false)
}

// RequireStaffJWT validates a staff JWT from the Authorization header, or
// the token query parameter for EventSource clients.
func RequireStaffJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeStaff, response.ErrStaffAccessOnly, false)
}

// RequireParticipantWSAuth validates a participant JWT from ?token=...
// Used for WebSocket upgrade requests.
func RequireParticipantWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeParticipant, response.ErrParticipantAccessOnly, true)
}

func requireTokenType(authService *service.AuthService, want service.TokenType, denied response.ErrCode, queryOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string
		if queryOnly {
			tokenStr = c.Query("token")
		} else {
			tokenStr = extractToken(c)
		}
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	// Fallback for EventSource (SSE) which cannot send headers
	return c.Query("token")
}
