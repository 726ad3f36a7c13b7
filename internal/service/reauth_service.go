package service

import (
	"context"
	"strconv"
	"sync"

	"childbehavior/internal/security"
)

// FlowState is a step of the re-authentication flow
type FlowState int

const (
	StateIdle FlowState = iota
	StatePasswordEntry
	StateBiometricChallenge
	StateVerifying
	StateSuccess
	StateFailure
)

func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePasswordEntry:
		return "password_entry"
	case StateBiometricChallenge:
		return "biometric_challenge"
	case StateVerifying:
		return "verifying"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Prompting reports whether the flow is waiting for the user's proof
func (s FlowState) Prompting() bool {
	return s == StatePasswordEntry || s == StateBiometricChallenge
}

// PasswordVerifier checks the signed-in user's password with the backend
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, password string) error
}

// ReauthFlow obtains fresh proof of the parent's identity and stamps the session on success.
// Every failure is recoverable: Retry re-enters the prompt, Cancel returns to Idle.
type ReauthFlow struct {
	session    *SessionController
	passwords  PasswordVerifier
	biometrics BiometricVerifier
	limiter    *security.RateLimiter

	mu      sync.Mutex
	state   FlowState
	prompt  FlowState
	attempt int
	lastErr *AuthError
}

// NewReauthFlow creates an idle flow. limiter may be nil to disable attempt limiting.
func NewReauthFlow(session *SessionController, passwords PasswordVerifier, biometrics BiometricVerifier, limiter *security.RateLimiter) *ReauthFlow {
	return &ReauthFlow{
		session:    session,
		passwords:  passwords,
		biometrics: biometrics,
		limiter:    limiter,
		state:      StateIdle,
	}
}

// State returns the current step
func (f *ReauthFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError returns the failure that moved the flow into StateFailure, if any
func (f *ReauthFlow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErr == nil {
		return nil
	}
	return f.lastErr
}

// BeginPassword prompts for the parent's password
func (f *ReauthFlow) BeginPassword() error {
	return f.begin(StatePasswordEntry)
}

// BeginBiometric prompts for a platform assertion
func (f *ReauthFlow) BeginBiometric() error {
	return f.begin(StateBiometricChallenge)
}

func (f *ReauthFlow) begin(prompt FlowState) error {
	user := f.session.Snapshot().CurrentUser
	if user == nil {
		return &AuthError{Reason: ReasonUnauthenticated, Err: ErrNotAuthenticated}
	}
	if !user.IsParent() {
		return ErrNotParent
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateVerifying {
		return ErrInvalidTransition
	}
	f.state = prompt
	f.prompt = prompt
	f.lastErr = nil
	return nil
}

// Retry re-enters the prompt of the method that failed
func (f *ReauthFlow) Retry() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateFailure {
		return ErrInvalidTransition
	}
	f.state = f.prompt
	f.lastErr = nil
	return nil
}

// Cancel abandons the flow. A verification still in flight is discarded when it returns.
func (f *ReauthFlow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempt++
	f.state = StateIdle
	f.lastErr = nil
}

// VerifyPassword checks password with the backend. The plaintext is not retained.
func (f *ReauthFlow) VerifyPassword(ctx context.Context, password string) error {
	if password == "" {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state != StatePasswordEntry {
			return ErrInvalidTransition
		}
		return &AuthError{Reason: ReasonOther, Err: ErrEmptyPassword}
	}

	attempt, userID, err := f.startVerifying(StatePasswordEntry)
	if err != nil {
		return err
	}

	key := strconv.FormatInt(userID, 10)
	if f.limiter != nil && !f.limiter.Allow(key) {
		return f.finish(attempt, key, &AuthError{Reason: ReasonRateLimited, Err: ErrTooManyAttempts})
	}

	return f.finish(attempt, key, f.passwords.VerifyPassword(ctx, password))
}

// VerifyBiometric asks the platform authenticator to verify the parent
func (f *ReauthFlow) VerifyBiometric(ctx context.Context) error {
	if !f.session.Snapshot().Biometric.Enabled {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.state != StateBiometricChallenge {
			return ErrInvalidTransition
		}
		f.fail(&AuthError{Reason: ReasonOther, Err: ErrBiometricDisabled})
		return f.lastErr
	}

	attempt, userID, err := f.startVerifying(StateBiometricChallenge)
	if err != nil {
		return err
	}

	var verifyErr error
	if f.biometrics == nil {
		verifyErr = &AuthError{Reason: ReasonUnsupportedBrowser}
	} else {
		verifyErr = f.biometrics.Verify(ctx, userID)
	}
	return f.finish(attempt, "", verifyErr)
}

// startVerifying moves from the given prompt to Verifying and returns the attempt number
func (f *ReauthFlow) startVerifying(from FlowState) (attempt int, userID int64, err error) {
	user := f.session.Snapshot().CurrentUser
	if user == nil {
		return 0, 0, &AuthError{Reason: ReasonUnauthenticated, Err: ErrNotAuthenticated}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != from {
		return 0, 0, ErrInvalidTransition
	}
	f.attempt++
	f.state = StateVerifying
	return f.attempt, user.ID, nil
}

// finish applies the verification outcome unless the flow was cancelled meanwhile.
// The session is stamped only here, after a successful verification.
func (f *ReauthFlow) finish(attempt int, limiterKey string, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if attempt != f.attempt || f.state != StateVerifying {
		return &AuthError{Reason: ReasonUserCancelled, Err: ErrFlowCancelled}
	}

	if err != nil {
		f.fail(toAuthError(err))
		return f.lastErr
	}

	f.session.stampParentAuth()
	if f.limiter != nil && limiterKey != "" {
		f.limiter.Reset(limiterKey)
	}
	f.state = StateSuccess
	f.lastErr = nil
	return nil
}

// fail records a failure. Caller holds mu.
func (f *ReauthFlow) fail(err *AuthError) {
	f.state = StateFailure
	f.lastErr = err
}
