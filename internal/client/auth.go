package client

import (
	"context"
	"errors"
	"net/http"

	"childbehavior/internal/models"
)

// ErrTokenInvalid is returned when the verify endpoint answers but reports the token invalid
var ErrTokenInvalid = errors.New("token is not valid")

// RegisterRequest is the body of a parent registration
type RegisterRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// LoginResult is returned by Login and Register
type LoginResult struct {
	UserID int64       `json:"user_id"`
	Token  string      `json:"token"`
	User   models.User `json:"user"`
}

type validResponse struct {
	Valid  bool  `json:"valid"`
	UserID int64 `json:"user_id"`
}

// Register creates a parent account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	if req.Role == "" {
		req.Role = string(models.RoleParent)
	}
	var result LoginResult
	if err := c.post(ctx, "/auth/register", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login exchanges phone and password for a token
func (c *Client) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	body := map[string]string{"phone": phone, "password": password}
	var result LoginResult
	if err := c.post(ctx, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyToken asks the backend whether the current token is still valid
func (c *Client) VerifyToken(ctx context.Context) error {
	var resp validResponse
	if err := c.get(ctx, "/auth/verify", &resp); err != nil {
		return err
	}
	if !resp.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// VerifyPassword checks the signed-in user's password. Any non-2xx answer is an error.
func (c *Client) VerifyPassword(ctx context.Context, password string) error {
	var resp validResponse
	if err := c.post(ctx, "/auth/verify-password", map[string]string{"password": password}, &resp); err != nil {
		return err
	}
	if !resp.Valid {
		return &APIError{StatusCode: http.StatusUnauthorized, Code: http.StatusUnauthorized, Message: "Invalid password"}
	}
	return nil
}

// ChangePassword replaces the signed-in user's password
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	return c.put(ctx, "/auth/password", body, nil)
}
