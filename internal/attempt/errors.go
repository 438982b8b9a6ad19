package attempt

import "errors"

var (
	ErrNotInProgress   = errors.New("attempt is not in progress")
	ErrBusy            = errors.New("attempt is busy")
	ErrFinished        = errors.New("attempt is finished")
	ErrClosed          = errors.New("attempt controller is closed")
	ErrOutOfRange      = errors.New("question index out of range")
	ErrJumpUnsupported = errors.New("direct jump requires all-at-once display mode")
	ErrNoConfirmation  = errors.New("no submission confirmation is pending")
	ErrAlreadySubmit   = errors.New("submission already in flight")
	ErrNothingToRetry  = errors.New("nothing to retry")
	ErrNoVerifier      = errors.New("admin override is not configured")
	ErrQuizGone        = errors.New("quiz no longer exists")
)

// Phase names the operation that left the attempt in the error state.
type Phase string

const (
	PhaseLoad   Phase = "load"
	PhaseSubmit Phase = "submit"
)

// Failure is the error recorded when a load or submission fails. Both are
// retryable; answers are preserved.
type Failure struct {
	Phase Phase
	Err   error
}

func (f *Failure) Error() string { return string(f.Phase) + " failed: " + f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }
