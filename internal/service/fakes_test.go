package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"childbehavior/internal/client"
	"childbehavior/internal/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeStore struct {
	mu      sync.Mutex
	prefs   models.Preferences
	saves   int
	saveErr error
}

func (s *fakeStore) Load() (models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *fakeStore) Save(prefs models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.prefs = prefs
	return nil
}

type fakeAPI struct {
	loginResult *client.LoginResult
	loginErr    error
	verifyErr   error
	profile     *models.User
	profileErr  error
	children    []models.Child
	childrenErr error
	passwordErr error

	verifyCalls   int
	passwordCalls int
	lastPassword  string
}

func (a *fakeAPI) Login(ctx context.Context, phone, password string) (*client.LoginResult, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return a.loginResult, nil
}

func (a *fakeAPI) VerifyToken(ctx context.Context) error {
	a.verifyCalls++
	return a.verifyErr
}

func (a *fakeAPI) GetProfile(ctx context.Context) (*models.User, error) {
	if a.profileErr != nil {
		return nil, a.profileErr
	}
	user := *a.profile
	return &user, nil
}

func (a *fakeAPI) ListChildren(ctx context.Context) ([]models.Child, error) {
	return a.children, a.childrenErr
}

func (a *fakeAPI) VerifyPassword(ctx context.Context, password string) error {
	a.passwordCalls++
	a.lastPassword = password
	return a.passwordErr
}

type fakeBiometrics struct {
	err   error
	calls int
}

func (b *fakeBiometrics) Verify(ctx context.Context, userID int64) error {
	b.calls++
	return b.err
}

var (
	errBoom = errors.New("boom")

	baseTime = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	parentUser = models.User{ID: 1, Nickname: "Mum", Role: models.RoleParent}
	childUser  = models.User{ID: 3, Nickname: "Xiaohong", Role: models.RoleChild}

	childA = models.Child{ID: 10, ParentID: 1, Nickname: "Alice"}
	childB = models.Child{ID: 11, ParentID: 1, Nickname: "Bob"}
	childC = models.Child{ID: 12, ParentID: 1, Nickname: "Carol"}
)

// newController returns a controller with user signed in and the given view mode,
// built without going through Login
func newController(user *models.User, mode models.ViewMode) (*SessionController, *fakeAPI, *fakeStore, *fakeClock) {
	api := &fakeAPI{}
	store := &fakeStore{}
	clock := &fakeClock{now: baseTime}
	c := NewSessionController(api, store, &fakeBiometrics{}, clock, 0)

	c.session.AuthToken = "token"
	if user != nil {
		u := *user
		c.session.CurrentUser = &u
	}
	c.session.ViewMode = mode
	return c, api, store, clock
}

func ptr[T any](v T) *T {
	return &v
}
