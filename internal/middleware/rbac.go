package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/response"
)

// RequireScope checks that the staff JWT carries the given scope.
func RequireScope(scope string) gin.HandlerFunc {
	return RequireAnyScope(scope)
}

// RequireAnyScope checks that the staff JWT carries at least one of the scopes.
func RequireAnyScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, s := range scopes {
			if claims.HasScope(s) {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}
