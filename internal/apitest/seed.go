package apitest

import (
	"fmt"

	"childbehavior/internal/models"
	"childbehavior/internal/security"
)

// Seed credentials
const (
	SeedParentPhone    = "13800138000"
	SeedParentPassword = "parent123"
	SeedChildPhone     = "13900139000"
	SeedChildPassword  = "child123"
)

// Seed IDs, assigned in insertion order
const (
	SeedParentID int64 = 1
	SeedChild1ID int64 = 2
	SeedChild2ID int64 = 3
)

// Seed loads one parent with two children. The second child can sign in on its own.
func (s *Server) Seed() error {
	parentHash, err := security.HashPassword(SeedParentPassword, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to seed parent: %w", err)
	}
	childHash, err := security.HashPassword(SeedChildPassword, s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to seed child: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	parentID := s.newID()
	s.accounts[parentID] = &account{
		user: models.User{
			ID:        parentID,
			Phone:     SeedParentPhone,
			Nickname:  "Mom",
			Role:      models.RoleParent,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: parentHash,
	}

	children := []struct {
		nickname string
		age      int
		gender   string
		points   int
		phone    string
		hash     string
	}{
		{nickname: "Xiaoming", age: 8, gender: "male", points: 120},
		{nickname: "Xiaohong", age: 6, gender: "female", points: 40, phone: SeedChildPhone, hash: childHash},
	}
	for _, c := range children {
		id := s.newID()
		pid := parentID
		s.accounts[id] = &account{
			user: models.User{
				ID:              id,
				Phone:           c.phone,
				Nickname:        c.nickname,
				Role:            models.RoleChild,
				ParentID:        &pid,
				AvailablePoints: c.points,
				TotalPoints:     c.points,
				CreatedAt:       now,
				UpdatedAt:       now,
			},
			passwordHash: c.hash,
			age:          c.age,
			gender:       c.gender,
		}
	}

	for _, rw := range []models.Reward{
		{Name: "Extra story time", Description: "One more bedtime story", Points: 30, Stock: 10},
		{Name: "Park trip", Description: "Weekend trip to the park", Points: 100, Stock: 2},
	} {
		reward := rw
		reward.ID = s.newID()
		reward.IsActive = true
		reward.CreatedBy = parentID
		reward.CreatedAt = now
		s.rewards[reward.ID] = &reward
	}

	return nil
}
