package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"childbehavior/internal/client"
	"childbehavior/internal/models"
	"childbehavior/internal/validation"
)

// DefaultParentAuthGrace is how long a parent verification keeps parent view unlocked
const DefaultParentAuthGrace = 5 * time.Minute

// Decision is the outcome of a parent view request
type Decision bool

const (
	Denied  Decision = false
	Allowed Decision = true
)

func (d Decision) String() string {
	if d {
		return "allowed"
	}
	return "denied"
}

// AuthAPI is the part of the backend the session needs
type AuthAPI interface {
	Login(ctx context.Context, phone, password string) (*client.LoginResult, error)
	VerifyToken(ctx context.Context) error
	GetProfile(ctx context.Context) (*models.User, error)
	ListChildren(ctx context.Context) ([]models.Child, error)
}

// PreferencesStore persists the session preferences
type PreferencesStore interface {
	Load() (models.Preferences, error)
	Save(prefs models.Preferences) error
}

// BiometricVerifier runs a platform assertion for a user
type BiometricVerifier interface {
	Verify(ctx context.Context, userID int64) error
}

// SessionController owns the session state. Every mutation goes through its methods.
type SessionController struct {
	api        AuthAPI
	store      PreferencesStore
	biometrics BiometricVerifier
	clock      Clock
	grace      time.Duration

	mu      sync.RWMutex
	session models.Session
	prefs   models.Preferences
}

// NewSessionController creates a signed-out session. A zero grace uses DefaultParentAuthGrace.
func NewSessionController(api AuthAPI, store PreferencesStore, biometrics BiometricVerifier, clock Clock, grace time.Duration) *SessionController {
	if clock == nil {
		clock = SystemClock{}
	}
	if grace <= 0 {
		grace = DefaultParentAuthGrace
	}
	return &SessionController{
		api:        api,
		store:      store,
		biometrics: biometrics,
		clock:      clock,
		grace:      grace,
		session:    models.Session{ViewMode: models.DefaultViewMode},
	}
}

// Token returns the current auth token. It is the API client's token source.
func (c *SessionController) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.AuthToken
}

// Grace returns the configured parent verification window
func (c *SessionController) Grace() time.Duration {
	return c.grace
}

// Snapshot returns a copy of the session safe to read without further locking
func (c *SessionController) Snapshot() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.session
	if s.CurrentUser != nil {
		user := *s.CurrentUser
		s.CurrentUser = &user
	}
	if s.Children != nil {
		s.Children = append([]models.Child(nil), s.Children...)
	}
	if s.SelectedChild != nil {
		child := *s.SelectedChild
		s.SelectedChild = &child
	}
	s.LastParentAuthAt = copyTime(s.LastParentAuthAt)
	s.Biometric.LastSetupAt = copyTime(s.Biometric.LastSetupAt)
	return s
}

// RequestParentView decides whether the view may switch to parent without re-authentication.
// Allowed switches the view and persists the mode. Denied means the caller should run a ReauthFlow.
func (c *SessionController) RequestParentView(skipAuth bool) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Children never get parent view, and a signed-out session has nobody to elevate
	if !c.session.CurrentUser.IsParent() {
		return Denied
	}

	now := c.clock.Now()
	switch {
	case skipAuth:
		c.session.LastParentAuthAt = &now
	case c.session.ViewMode == models.ViewParent:
		return Allowed
	case !c.withinGrace(now):
		return Denied
	}

	c.setViewMode(models.ViewParent)
	return Allowed
}

// withinGrace reports whether the last parent verification is recent enough. Caller holds mu.
func (c *SessionController) withinGrace(now time.Time) bool {
	last := c.session.LastParentAuthAt
	if last == nil {
		return false
	}
	elapsed := now.Sub(*last)
	return elapsed >= 0 && elapsed < c.grace
}

// SwitchToChildView moves a parent into child view. It never asks for verification.
func (c *SessionController) SwitchToChildView() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	user := c.session.CurrentUser
	if user == nil {
		return ErrNotAuthenticated
	}
	if !user.IsParent() {
		// Child accounts are always in child view
		return nil
	}

	if c.session.SelectedChild == nil && len(c.session.Children) > 0 {
		c.session.SelectedChild = c.rememberedOrFirst(c.session.Children)
	}
	c.setViewMode(models.ViewChild)
	return nil
}

// rememberedOrFirst picks the remembered child when it is still listed. Caller holds mu.
func (c *SessionController) rememberedOrFirst(children []models.Child) *models.Child {
	if id := c.prefs.SelectedChildID; id != nil {
		if child := models.FindChild(children, *id); child != nil {
			return child
		}
	}
	first := children[0]
	return &first
}

// stampParentAuth records a successful parent verification
func (c *SessionController) stampParentAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.session.LastParentAuthAt = &now
}

// setViewMode changes and persists the view mode. Caller holds mu.
func (c *SessionController) setViewMode(mode models.ViewMode) {
	c.session.ViewMode = mode
	c.prefs.ViewMode = &mode
	c.save()
}

// save writes the preferences. Caller holds mu. A failed write leaves the in-memory session authoritative.
func (c *SessionController) save() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.prefs); err != nil {
		log.Printf("Warning: failed to persist session preferences: %v", err)
	}
}

// Restore rehydrates the session from stored preferences. A missing, expired or rejected
// token leaves the session signed out and returns nil; a network failure returns an *AuthError
// and keeps the stored token for a later attempt.
func (c *SessionController) Restore(ctx context.Context) error {
	prefs, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	c.mu.Lock()
	c.prefs = prefs
	c.session = models.Session{
		AuthToken: prefs.AuthToken,
		ViewMode:  models.DefaultViewMode,
		Biometric: prefs.Biometric(),
	}
	if prefs.ViewMode != nil {
		c.session.ViewMode = *prefs.ViewMode
	}
	token := prefs.AuthToken
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	if claims, err := client.TokenClaims(token); err == nil && claims.Expired(c.clock.Now()) {
		log.Printf("Stored token expired at %s, signing out", claims.ExpiresAt.Time.Format(time.RFC3339))
		c.clearToken()
		return nil
	}

	if err := c.api.VerifyToken(ctx); err != nil {
		authErr := toAuthError(err)
		if authErr.Reason == ReasonNetworkFailure {
			c.dropToken()
			return authErr
		}
		log.Printf("Stored token rejected: %v", err)
		c.clearToken()
		return nil
	}

	user, err := c.api.GetProfile(ctx)
	if err != nil {
		c.dropToken()
		return toAuthError(fmt.Errorf("failed to load profile: %w", err))
	}

	c.mu.Lock()
	c.session.CurrentUser = user
	if user.IsChild() {
		c.setViewMode(models.ViewChild)
	}
	c.mu.Unlock()

	if user.IsParent() {
		if err := c.RefreshChildren(ctx); err != nil {
			log.Printf("Warning: failed to load children: %v", err)
		}
	}
	return nil
}

// dropToken forgets the token in memory only
func (c *SessionController) dropToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.AuthToken = ""
}

// clearToken forgets the token and removes it from storage
func (c *SessionController) clearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.AuthToken = ""
	c.prefs.AuthToken = ""
	c.save()
}

// Login signs in with phone and password. A parent lands in parent view with a fresh
// verification stamp; a child lands in child view.
func (c *SessionController) Login(ctx context.Context, phone, password string) error {
	if err := validation.ValidatePhone(phone); err != nil {
		return err
	}
	if password == "" {
		return ErrEmptyPassword
	}

	result, err := c.api.Login(ctx, phone, password)
	if err != nil {
		return toAuthError(err)
	}

	user := result.User
	if user.ID == 0 {
		user.ID = result.UserID
	}

	c.mu.Lock()
	c.session = models.Session{
		AuthToken:   result.Token,
		CurrentUser: &user,
		ViewMode:    c.session.ViewMode,
		Biometric:   c.session.Biometric,
	}
	c.prefs.AuthToken = result.Token
	if user.IsChild() {
		c.setViewMode(models.ViewChild)
	} else {
		c.save()
	}
	c.mu.Unlock()

	if !user.IsParent() {
		return nil
	}

	c.RequestParentView(true)
	if err := c.RefreshChildren(ctx); err != nil {
		log.Printf("Warning: failed to load children after login: %v", err)
	}
	return nil
}

// Logout destroys the session. The remembered child and biometric settings survive.
func (c *SessionController) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = models.Session{
		ViewMode:  models.DefaultViewMode,
		Biometric: c.session.Biometric,
	}
	c.prefs.AuthToken = ""
	c.prefs.ViewMode = nil
	c.save()
}

// SetChildren replaces the child list and repairs the selection
func (c *SessionController) SetChildren(children []models.Child) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setChildren(children)
}

func (c *SessionController) setChildren(children []models.Child) {
	c.session.Children = append([]models.Child(nil), children...)

	if len(children) == 0 {
		c.session.SelectedChild = nil
		return
	}

	if id := c.prefs.SelectedChildID; id != nil {
		if child := models.FindChild(children, *id); child != nil {
			c.session.SelectedChild = child
			return
		}
	}
	if current := c.session.SelectedChild; current != nil {
		if child := models.FindChild(children, current.ID); child != nil {
			c.session.SelectedChild = child
			return
		}
	}
	first := children[0]
	c.session.SelectedChild = &first
}

// SelectChild selects one of the parent's children and remembers it across sessions
func (c *SessionController) SelectChild(childID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.CurrentUser == nil {
		return ErrNotAuthenticated
	}
	child := models.FindChild(c.session.Children, childID)
	if child == nil {
		return ErrChildNotFound
	}

	c.session.SelectedChild = child
	id := child.ID
	c.prefs.SelectedChildID = &id
	c.save()
	return nil
}

// RefreshChildren reloads the parent's children from the backend
func (c *SessionController) RefreshChildren(ctx context.Context) error {
	c.mu.RLock()
	user := c.session.CurrentUser
	c.mu.RUnlock()

	if user == nil {
		return &AuthError{Reason: ReasonUnauthenticated, Err: ErrNotAuthenticated}
	}
	if !user.IsParent() {
		return ErrNotParent
	}

	children, err := c.api.ListChildren(ctx)
	if err != nil {
		return toAuthError(fmt.Errorf("failed to list children: %w", err))
	}

	c.SetChildren(children)
	return nil
}

// RefreshProfile reloads the signed-in user after a profile edit. The role stays the one
// assigned at sign-in.
func (c *SessionController) RefreshProfile(ctx context.Context) error {
	c.mu.RLock()
	user := c.session.CurrentUser
	c.mu.RUnlock()

	if user == nil {
		return &AuthError{Reason: ReasonUnauthenticated, Err: ErrNotAuthenticated}
	}

	profile, err := c.api.GetProfile(ctx)
	if err != nil {
		return toAuthError(fmt.Errorf("failed to load profile: %w", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.session.CurrentUser
	if current == nil || current.ID != profile.ID {
		// Signed out or switched accounts while the request was in flight
		return nil
	}
	profile.Role = current.Role
	c.session.CurrentUser = profile
	return nil
}

// EnableBiometric turns on biometric re-authentication after one successful assertion
func (c *SessionController) EnableBiometric(ctx context.Context) error {
	c.mu.RLock()
	user := c.session.CurrentUser
	c.mu.RUnlock()

	if user == nil {
		return &AuthError{Reason: ReasonUnauthenticated, Err: ErrNotAuthenticated}
	}
	if !user.IsParent() {
		return ErrNotParent
	}
	if c.biometrics == nil {
		return &AuthError{Reason: ReasonUnsupportedBrowser}
	}

	if err := c.biometrics.Verify(ctx, user.ID); err != nil {
		return toAuthError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.session.Biometric = models.BiometricSettings{Enabled: true, LastSetupAt: &now}
	c.prefs.BiometricEnabled = true
	c.prefs.BiometricLastSetup = copyTime(&now)
	c.save()
	return nil
}

// DisableBiometric turns biometric re-authentication off
func (c *SessionController) DisableBiometric() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Biometric = models.BiometricSettings{}
	c.prefs.BiometricEnabled = false
	c.prefs.BiometricLastSetup = nil
	c.save()
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
