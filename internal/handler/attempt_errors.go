package handler

import (
	"errors"
	"net"
	"net/http"

	"github.com/stemsi/exstem-attempt/internal/answers"
	"github.com/stemsi/exstem-attempt/internal/attempt"
	"github.com/stemsi/exstem-attempt/internal/lockdown"
	"github.com/stemsi/exstem-attempt/internal/quizapi"
	"github.com/stemsi/exstem-attempt/internal/response"
	"github.com/stemsi/exstem-attempt/internal/service"
)

// apiError is the client-facing classification of a controller or service error.
type apiError struct {
	Status    int
	Code      response.ErrCode
	Retryable bool
}

var sentinelErrors = []struct {
	err error
	api apiError
}{
	{attempt.ErrNotInProgress, apiError{http.StatusConflict, response.ErrAttemptNotActive, false}},
	{attempt.ErrBusy, apiError{http.StatusConflict, response.ErrAttemptBusy, true}},
	{attempt.ErrFinished, apiError{http.StatusConflict, response.ErrAttemptFinished, false}},
	{attempt.ErrClosed, apiError{http.StatusGone, response.ErrAttemptClosed, false}},
	{attempt.ErrOutOfRange, apiError{http.StatusBadRequest, response.ErrOutOfRange, false}},
	{attempt.ErrJumpUnsupported, apiError{http.StatusBadRequest, response.ErrJumpUnsupported, false}},
	{attempt.ErrNoConfirmation, apiError{http.StatusConflict, response.ErrNoConfirmation, false}},
	{attempt.ErrAlreadySubmit, apiError{http.StatusConflict, response.ErrAlreadySubmitting, false}},
	{attempt.ErrNothingToRetry, apiError{http.StatusConflict, response.ErrNothingToRetry, false}},
	{attempt.ErrNoVerifier, apiError{http.StatusServiceUnavailable, response.ErrOverrideUnavailable, false}},
	{attempt.ErrQuizGone, apiError{http.StatusGone, response.ErrQuizNotAvailable, false}},
	{answers.ErrUnknownQuestion, apiError{http.StatusBadRequest, response.ErrUnknownQuestion, false}},
	{lockdown.ErrNoConsentNeeded, apiError{http.StatusConflict, response.ErrNoConsentNeeded, false}},
	{lockdown.ErrOverrideUnavailable, apiError{http.StatusConflict, response.ErrOverrideUnavailable, false}},
	{lockdown.ErrPersonalDisabled, apiError{http.StatusConflict, response.ErrOverrideUnavailable, false}},
	{lockdown.ErrNoPromptPending, apiError{http.StatusConflict, response.ErrNoPromptPending, false}},
	{lockdown.ErrOverrideRejected, apiError{http.StatusForbidden, response.ErrOverrideRejected, false}},
	{service.ErrQuizUnavailable, apiError{http.StatusNotFound, response.ErrQuizNotAvailable, false}},
	{service.ErrRegistrationRejected, apiError{http.StatusForbidden, response.ErrRegistrationRejected, false}},
	{service.ErrShuttingDown, apiError{http.StatusServiceUnavailable, response.ErrAttemptClosed, true}},
	{service.ErrOverrideNotConfigured, apiError{http.StatusServiceUnavailable, response.ErrOverrideUnavailable, false}},
	{quizapi.ErrNotFound, apiError{http.StatusNotFound, response.ErrQuizNotAvailable, false}},
}

// classify maps an error to its status, code and retry hint. Load and
// submit failures are always retryable; unknown errors are internal.
func classify(err error) apiError {
	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return s.api
		}
	}

	var f *attempt.Failure
	if errors.As(err, &f) {
		if f.Phase == attempt.PhaseLoad {
			return apiError{http.StatusBadGateway, response.ErrLoadFailed, true}
		}
		return apiError{http.StatusBadGateway, response.ErrSubmitFailed, true}
	}

	var se *quizapi.StatusError
	var ne net.Error
	if errors.As(err, &se) || errors.As(err, &ne) {
		return apiError{http.StatusBadGateway, response.ErrQuizServiceDown, true}
	}

	return apiError{http.StatusInternalServerError, response.ErrInternal, false}
}
