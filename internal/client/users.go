package client

import (
	"context"
	"fmt"

	"childbehavior/internal/models"
)

// ProfileUpdate holds the editable profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ChildInput is the body for creating or updating a child
type ChildInput struct {
	Nickname string `json:"nickname,omitempty"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// GetProfile returns the signed-in user
func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/users/profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the signed-in user's profile
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	return c.put(ctx, "/users/profile", update, nil)
}

// GetUserPoints returns a user's point balance
func (c *Client) GetUserPoints(ctx context.Context, userID int64) (*models.Points, error) {
	var points models.Points
	if err := c.get(ctx, fmt.Sprintf("/users/%d/points", userID), &points); err != nil {
		return nil, err
	}
	return &points, nil
}

// ListChildren returns the signed-in parent's children
func (c *Client) ListChildren(ctx context.Context) ([]models.Child, error) {
	var children []models.Child
	if err := c.get(ctx, "/children", &children); err != nil {
		return nil, err
	}
	return children, nil
}

// CreateChild adds a child account under the signed-in parent
func (c *Client) CreateChild(ctx context.Context, in ChildInput) (*models.Child, error) {
	var child models.Child
	if err := c.post(ctx, "/children", in, &child); err != nil {
		return nil, err
	}
	return &child, nil
}

// UpdateChild edits a child account
func (c *Client) UpdateChild(ctx context.Context, childID int64, in ChildInput) (*models.Child, error) {
	var child models.Child
	if err := c.put(ctx, fmt.Sprintf("/children/%d", childID), in, &child); err != nil {
		return nil, err
	}
	return &child, nil
}

// DeleteChild removes a child account
func (c *Client) DeleteChild(ctx context.Context, childID int64) error {
	return c.delete(ctx, fmt.Sprintf("/children/%d", childID), nil)
}
