package models

import "time"

// Reward is an item in a parent's rewards catalog
type Reward struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Points      int       `json:"points"`
	Image       string    `json:"image,omitempty"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// InStock reports whether the reward can currently be redeemed
func (r Reward) InStock() bool {
	return r.IsActive && r.Stock > 0
}

// ExchangeStatus tracks a redemption
type ExchangeStatus string

const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeCompleted ExchangeStatus = "completed"
	ExchangeCancelled ExchangeStatus = "cancelled"
)

// ExchangeRecord is a reward redemption
type ExchangeRecord struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	RewardID    int64          `json:"reward_id"`
	PointsUsed  int            `json:"points_used"`
	Status      ExchangeStatus `json:"status"`
	ExchangedAt time.Time      `json:"exchanged_at"`
	Reward      *Reward        `json:"reward,omitempty"`
}
