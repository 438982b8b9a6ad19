// Package quizapi is the HTTP client for the upstream Quiz Service.
package quizapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-attempt/internal/model"
)

var (
	ErrNotFound     = errors.New("quiz service: not found")
	ErrUnauthorized = errors.New("quiz service: unauthorized")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: quiz service returned %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: quiz service returned %d", e.Op, e.Code)
}

// Is maps 404 and 401/403 onto the sentinel errors.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	}
	return false
}

// OverrideValidation is the admin override validation answer.
type OverrideValidation struct {
	Valid          bool `json:"valid"`
	SessionTimeout int  `json:"sessionTimeout"` // seconds
}

// Client talks JSON to the Quiz Service with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a client. A zero timeout defaults to 10 seconds.
func New(baseURL, token string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "quiz_api").Logger(),
	}
}

// GetQuiz fetches quiz metadata (and questions when the service embeds them).
func (c *Client) GetQuiz(ctx context.Context, quizID string) (*model.Quiz, error) {
	var out model.Quiz
	if err := c.do(ctx, "get quiz", http.MethodGet, "/quizzes/"+url.PathEscape(quizID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQuestions fetches the question list in presentation order.
func (c *Client) GetQuestions(ctx context.Context, quizID string) ([]model.Question, error) {
	var out []model.Question
	if err := c.do(ctx, "get questions", http.MethodGet, "/quizzes/"+url.PathEscape(quizID)+"/questions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register records a participant for a quiz.
func (c *Client) Register(ctx context.Context, quizID string, reg *model.Registration) error {
	return c.do(ctx, "register participant", http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/register", reg, nil)
}

// StartAttempt opens or resumes the attempt of a session.
func (c *Client) StartAttempt(ctx context.Context, quizID, sessionID string) (*model.AttemptStart, error) {
	body := map[string]string{"sessionToken": sessionID}
	var out model.AttemptStart
	if err := c.do(ctx, "start attempt", http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/start", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAttempt sends the answers. Duplicate rejection is the service's job.
func (c *Client) SubmitAttempt(ctx context.Context, quizID string, req *model.SubmissionRequest) (*model.SubmissionResult, error) {
	var out model.SubmissionResult
	if err := c.do(ctx, "submit attempt", http.MethodPost, "/quizzes/"+url.PathEscape(quizID)+"/submit", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuizExists polls the status endpoint. A 404 means the quiz was deleted.
func (c *Client) QuizExists(ctx context.Context, quizID string) (bool, error) {
	var out model.QuizStatus
	err := c.do(ctx, "quiz status", http.MethodGet, "/quizzes/"+url.PathEscape(quizID)+"/status", nil, &out)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ValidateAdminOverride checks an admin override password.
func (c *Client) ValidateAdminOverride(ctx context.Context, quizID, password string) (*OverrideValidation, error) {
	body := map[string]string{"quizId": quizID, "password": password}
	var out OverrideValidation
	if err := c.do(ctx, "validate admin override", http.MethodPost, "/security/admin-override/validate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecuritySettings fetches the global security configuration.
func (c *Client) SecuritySettings(ctx context.Context) (*model.SecurityConfig, error) {
	var out model.SecurityConfig
	if err := c.do(ctx, "security settings", http.MethodGet, "/security/settings", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublicQuizzes fetches landing page content.
func (c *Client) PublicQuizzes(ctx context.Context) ([]model.QuizSummary, error) {
	var out []model.QuizSummary
	if err := c.do(ctx, "public quizzes", http.MethodGet, "/public/quizzes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Quiz service call")

	if resp.StatusCode/100 != 2 {
		return statusErr(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func statusErr(op string, resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	return &StatusError{Op: op, Code: resp.StatusCode, Message: msg}
}
