package models

import "time"

// Role is the account type assigned by the backend. It never changes client-side.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleChild
}

// User represents the signed-in account
type User struct {
	ID              int64     `json:"id"`
	Phone           string    `json:"phone,omitempty"`
	Nickname        string    `json:"nickname"`
	Email           string    `json:"email,omitempty"`
	Avatar          string    `json:"avatar,omitempty"`
	Role            Role      `json:"role"`
	ParentID        *int64    `json:"parent_id,omitempty"`
	AvailablePoints int       `json:"available_points"`
	TotalPoints     int       `json:"total_points"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsParent reports whether the user holds the parent role
func (u *User) IsParent() bool {
	return u != nil && u.Role == RoleParent
}

// IsChild reports whether the user holds the child role
func (u *User) IsChild() bool {
	return u != nil && u.Role == RoleChild
}

// Points is the balance returned by the points endpoint
type Points struct {
	TotalPoints     int       `json:"total_points"`
	AvailablePoints int       `json:"available_points"`
	UpdatedAt       time.Time `json:"updated_at"`
}
