package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

// ContextKeyQuizSession is the Gin context key for the loaded quiz session.
const ContextKeyQuizSession = "quiz_session"

// CheckQuizSession loads the session record the participant token points
// at. Logging out destroys the record, which revokes every token issued for
// it.
func CheckQuizSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for participant tokens.
		if claims.TokenType != service.TokenTypeParticipant {
			c.Next()
			return
		}

		sess, err := authService.ValidateParticipantSession(c.Request.Context(), claims)
		if err != nil {
			if errors.Is(err, service.ErrSessionInvalidated) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
				return
			}
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyQuizSession, sess)
		c.Next()
	}
}

// GetQuizSession retrieves the session set by CheckQuizSession.
func GetQuizSession(c *gin.Context) *model.QuizSession {
	val, exists := c.Get(ContextKeyQuizSession)
	if !exists {
		return nil
	}
	sess, ok := val.(*model.QuizSession)
	if !ok {
		return nil
	}
	return sess
}
