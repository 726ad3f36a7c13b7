package models

import "time"

// ViewMode selects which side of the app is shown
type ViewMode string

const (
	ViewParent ViewMode = "parent"
	ViewChild  ViewMode = "child"
)

// DefaultViewMode is used for a fresh or logged-out session
const DefaultViewMode = ViewParent

// ParseViewMode converts a stored value, reporting false for anything unknown
func ParseViewMode(s string) (ViewMode, bool) {
	switch ViewMode(s) {
	case ViewParent:
		return ViewParent, true
	case ViewChild:
		return ViewChild, true
	}
	return "", false
}

// BiometricSettings records whether biometric re-authentication is enabled.
// It survives logout.
type BiometricSettings struct {
	Enabled     bool
	LastSetupAt *time.Time
}

// Session is a point-in-time copy of the client session state
type Session struct {
	AuthToken        string
	CurrentUser      *User
	Children         []Child
	SelectedChild    *Child
	ViewMode         ViewMode
	LastParentAuthAt *time.Time
	Biometric        BiometricSettings
}

// Authenticated reports whether a verified token and a user record are present
func (s Session) Authenticated() bool {
	return s.AuthToken != "" && s.CurrentUser != nil
}

// Role returns the current user's role, or "" when signed out
func (s Session) Role() Role {
	if s.CurrentUser == nil {
		return ""
	}
	return s.CurrentUser.Role
}
