// Package biometric verifies the device owner through a platform authenticator.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"time"

	"childbehavior/internal/security"
)

// Reason classifies a failed verification
type Reason string

const (
	ReasonUnsupportedBrowser Reason = "unsupported_browser"
	ReasonUnsupportedDevice  Reason = "unsupported_device"
	ReasonUserCancelled      Reason = "user_cancelled"
	ReasonTimeout            Reason = "timeout"
	ReasonOther              Reason = "other"
)

// DefaultTimeout bounds a single assertion
const DefaultTimeout = 60 * time.Second

// Errors a Platform reports from RequestAssertion
var (
	ErrUserCancelled = errors.New("user cancelled verification")
	ErrTimeout       = errors.New("verification timed out")
	ErrNotSupported  = errors.New("authenticator not supported")
)

// Error is a failed verification with its reason
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AssertionRequest is handed to the platform for one verification
type AssertionRequest struct {
	UserID    int64
	Challenge []byte
	Timeout   time.Duration
}

// Platform is the device's user-verifying authenticator
type Platform interface {
	// IsSupported reports whether the biometric API exists at all
	IsSupported() bool
	// IsDeviceCapable reports whether a user-verifying authenticator is present
	IsDeviceCapable(ctx context.Context) (bool, error)
	// RequestAssertion asks the user to verify. It must honor ctx cancellation.
	RequestAssertion(ctx context.Context, req AssertionRequest) error
}

// Verifier runs the capability checks and the assertion in order
type Verifier struct {
	platform Platform
	timeout  time.Duration
}

// NewVerifier creates a verifier. A zero timeout uses DefaultTimeout.
func NewVerifier(platform Platform, timeout time.Duration) *Verifier {
	if platform == nil {
		platform = Unavailable{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Verifier{platform: platform, timeout: timeout}
}

// Available reports whether verification could be attempted on this device
func (v *Verifier) Available(ctx context.Context) bool {
	if !v.platform.IsSupported() {
		return false
	}
	capable, err := v.platform.IsDeviceCapable(ctx)
	return err == nil && capable
}

// Verify asks the platform to verify userID. It returns nil on success or an *Error.
// No assertion is requested unless both capability checks pass.
func (v *Verifier) Verify(ctx context.Context, userID int64) error {
	if !v.platform.IsSupported() {
		return &Error{Reason: ReasonUnsupportedBrowser}
	}

	capable, err := v.platform.IsDeviceCapable(ctx)
	if err != nil {
		return &Error{Reason: ReasonUnsupportedDevice, Err: err}
	}
	if !capable {
		return &Error{Reason: ReasonUnsupportedDevice}
	}

	challenge, err := security.NewChallenge()
	if err != nil {
		return &Error{Reason: ReasonOther, Err: err}
	}

	assertCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	err = v.platform.RequestAssertion(assertCtx, AssertionRequest{
		UserID:    userID,
		Challenge: challenge,
		Timeout:   v.timeout,
	})
	if err == nil {
		return nil
	}
	return &Error{Reason: classify(ctx, assertCtx, err), Err: err}
}

func classify(parent, assertCtx context.Context, err error) Reason {
	switch {
	case errors.Is(err, ErrUserCancelled):
		return ReasonUserCancelled
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrNotSupported):
		return ReasonUnsupportedDevice
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	case parent.Err() != nil:
		// The caller abandoned the prompt
		return ReasonUserCancelled
	case errors.Is(assertCtx.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	default:
		return ReasonOther
	}
}

// Unavailable is the platform of a device without biometric support
type Unavailable struct{}

func (Unavailable) IsSupported() bool { return false }

func (Unavailable) IsDeviceCapable(context.Context) (bool, error) { return false, nil }

func (Unavailable) RequestAssertion(context.Context, AssertionRequest) error { return ErrNotSupported }
