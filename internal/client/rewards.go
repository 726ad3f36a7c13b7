package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"childbehavior/internal/models"
)

// RewardInput is the body for creating or updating a reward
type RewardInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points,omitempty"`
	Image       string `json:"image,omitempty"`
	Stock       *int   `json:"stock,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// ExchangeInput redeems a reward, optionally on behalf of a child
type ExchangeInput struct {
	RewardID   int64 `json:"reward_id"`
	PointsUsed int   `json:"points_used"`
	ChildID    int64 `json:"child_id,omitempty"`
}

// RewardPage is one page of the rewards catalog
type RewardPage struct {
	Rewards    []models.Reward `json:"rewards"`
	Pagination Pagination      `json:"pagination"`
}

// ExchangePage is one page of redemption history
type ExchangePage struct {
	Exchanges  []models.ExchangeRecord `json:"exchanges"`
	Pagination Pagination              `json:"pagination"`
}

// UploadResult describes a stored upload
type UploadResult struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	URL          string `json:"url"`
}

// ListRewards returns the catalog visible to the signed-in user
func (c *Client) ListRewards(ctx context.Context) (*RewardPage, error) {
	var page RewardPage
	if err := c.get(ctx, "/rewards", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateReward adds a reward to the signed-in parent's catalog
func (c *Client) CreateReward(ctx context.Context, in RewardInput) (*models.Reward, error) {
	var reward models.Reward
	if err := c.post(ctx, "/rewards", in, &reward); err != nil {
		return nil, err
	}
	return &reward, nil
}

// UpdateReward edits a reward
func (c *Client) UpdateReward(ctx context.Context, rewardID int64, in RewardInput) error {
	return c.put(ctx, fmt.Sprintf("/rewards/%d", rewardID), in, nil)
}

// DeleteReward removes a reward, or deactivates it when it has redemptions
func (c *Client) DeleteReward(ctx context.Context, rewardID int64) error {
	return c.delete(ctx, fmt.Sprintf("/rewards/%d", rewardID), nil)
}

// ExchangeReward redeems a reward
func (c *Client) ExchangeReward(ctx context.Context, in ExchangeInput) (*models.ExchangeRecord, error) {
	var record models.ExchangeRecord
	if err := c.post(ctx, "/rewards/exchange", in, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListExchanges returns redemption history visible to the signed-in user
func (c *Client) ListExchanges(ctx context.Context) (*ExchangePage, error) {
	var page ExchangePage
	if err := c.get(ctx, "/rewards/exchanges", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UploadImage sends an image as the multipart "file" field
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/file", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result UploadResult
	if err := c.send(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
