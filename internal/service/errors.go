package service

import (
	"context"
	"errors"
	"fmt"

	"childbehavior/internal/biometric"
	"childbehavior/internal/client"
)

// Reason classifies a failed authentication step
type Reason string

const (
	ReasonUnauthenticated    Reason = "unauthenticated"
	ReasonUnsupportedBrowser Reason = Reason(biometric.ReasonUnsupportedBrowser)
	ReasonUnsupportedDevice  Reason = Reason(biometric.ReasonUnsupportedDevice)
	ReasonUserCancelled      Reason = Reason(biometric.ReasonUserCancelled)
	ReasonTimeout            Reason = Reason(biometric.ReasonTimeout)
	ReasonServerRejected     Reason = "server_rejected"
	ReasonNetworkFailure     Reason = "network_failure"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonOther              Reason = Reason(biometric.ReasonOther)
)

var (
	ErrNotAuthenticated  = errors.New("not signed in")
	ErrNotParent         = errors.New("only a parent account can do this")
	ErrChildNotFound     = errors.New("child not found")
	ErrBiometricDisabled = errors.New("biometric verification is not enabled")
	ErrEmptyPassword     = errors.New("password is required")
	ErrTooManyAttempts   = errors.New("too many verification attempts, try again later")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrFlowCancelled     = errors.New("verification was cancelled")
)

// AuthError is a recoverable authentication failure with its reason
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the reason carried by err, or ReasonOther
func ReasonOf(err error) Reason {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ReasonOther
}

// toAuthError maps collaborator errors onto the failure taxonomy
func toAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var bioErr *biometric.Error
	if errors.As(err, &bioErr) {
		return &AuthError{Reason: Reason(bioErr.Reason), Err: err}
	}

	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrTokenInvalid):
		return &AuthError{Reason: ReasonUnauthenticated, Err: err}
	case errors.Is(err, client.ErrNetwork):
		return &AuthError{Reason: ReasonNetworkFailure, Err: err}
	case errors.As(err, &apiErr):
		return &AuthError{Reason: ReasonServerRejected, Err: err}
	case errors.Is(err, context.Canceled):
		return &AuthError{Reason: ReasonUserCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AuthError{Reason: ReasonTimeout, Err: err}
	default:
		return &AuthError{Reason: ReasonOther, Err: err}
	}
}
