package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/middleware"
	"github.com/stemsi/exstem-attempt/internal/response"
)

// AuthHandler exposes the identity behind a token.
type AuthHandler struct{}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// GetStaffProfile godoc
// GET /api/v1/staff/me
// Returns the subject and scopes of the staff token.
func (h *AuthHandler) GetStaffProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var expiresAt interface{}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	response.Success(c, http.StatusOK, gin.H{
		"staff": gin.H{
			"subject":    claims.Subject,
			"scopes":     claims.Scopes,
			"expires_at": expiresAt,
		},
	})
}
