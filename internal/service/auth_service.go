package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/model"
	"github.com/stemsi/exstem-attempt/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("quiz session invalidated")
)

// TokenType distinguishes participant vs staff tokens.
type TokenType string

const (
	TokenTypeParticipant TokenType = "participant"
	TokenTypeStaff       TokenType = "staff"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType     TokenType `json:"token_type"`
	SessionID     string    `json:"session_id,omitempty"`     // Participant only
	QuizID        string    `json:"quiz_id,omitempty"`        // Participant only
	ParticipantID string    `json:"participant_id,omitempty"` // Participant only
	Scopes        []string  `json:"scopes,omitempty"`         // Staff only
}

// Staff scopes.
const (
	ScopeMonitor  = "monitor:read"
	ScopeSettings = "settings:write"
)

// HasScope reports whether the claims carry the given scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthService handles session tokens and password hashing.
type AuthService struct {
	cfg      *config.Config
	sessions *session.Store
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, sessions *session.Store) *AuthService {
	return &AuthService{cfg: cfg, sessions: sessions, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateParticipantToken signs the token handed out on quiz entry. It is
// bound to the session record; destroying the record revokes the token.
func (s *AuthService) GenerateParticipantToken(sess *model.QuizSession) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sess.Participant.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:     TokenTypeParticipant,
		SessionID:     sess.SessionID,
		QuizID:        sess.QuizID,
		ParticipantID: sess.Participant.ID,
	}
	return s.sign(claims)
}

// GenerateStaffToken signs a token for proctors reviewing violations.
// A zero ttl uses the configured JWT expiry. Without scopes the token only
// grants ScopeMonitor.
func (s *AuthService) GenerateStaffToken(subject string, ttl time.Duration, scopes ...string) (string, error) {
	if len(scopes) == 0 {
		scopes = []string{ScopeMonitor}
	}
	if ttl <= 0 {
		ttl = s.cfg.JWTExpiry
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: TokenTypeStaff,
		Scopes:    scopes,
	}
	return s.sign(claims)
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateParticipantSession checks that the token still points at a live
// session record for the same quiz and returns that record.
func (s *AuthService) ValidateParticipantSession(ctx context.Context, claims *Claims) (*model.QuizSession, error) {
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionInvalidated
		}
		return nil, fmt.Errorf("check session: %w", err)
	}
	if sess.QuizID != claims.QuizID || sess.Participant.ID != claims.ParticipantID {
		return nil, ErrSessionInvalidated
	}
	return sess, nil
}
