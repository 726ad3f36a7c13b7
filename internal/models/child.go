package models

import "time"

// Child represents a child profile owned by exactly one parent
type Child struct {
	ID              int64     `json:"id"`
	ParentID        int64     `json:"parent_id"`
	Nickname        string    `json:"nickname"`
	Avatar          string    `json:"avatar,omitempty"`
	Age             int       `json:"age,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	AvailablePoints int       `json:"available_points"`
	TotalPoints     int       `json:"total_points"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Level derives the display level from total points
func (c Child) Level() int {
	switch {
	case c.TotalPoints >= 500:
		return 5
	case c.TotalPoints >= 300:
		return 4
	case c.TotalPoints >= 150:
		return 3
	case c.TotalPoints >= 50:
		return 2
	default:
		return 1
	}
}

// FindChild returns the child with the given ID, or nil
func FindChild(children []Child, id int64) *Child {
	for i := range children {
		if children[i].ID == id {
			c := children[i]
			return &c
		}
	}
	return nil
}
