package client

import (
	"context"
	"net/url"
	"strconv"

	"childbehavior/internal/models"
)

// BehaviorInput is the body for recording a behavior
type BehaviorInput struct {
	ChildID      int64  `json:"child_id"`
	BehaviorType string `json:"behavior_type"`
	BehaviorDesc string `json:"behavior_desc"`
	ScoreChange  int    `json:"score_change"`
	ImageURL     string `json:"image_url,omitempty"`
}

// BehaviorFilter narrows a behavior listing. Zero values are omitted.
type BehaviorFilter struct {
	ChildID   int64
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

func (f BehaviorFilter) query() url.Values {
	q := url.Values{}
	if f.ChildID > 0 {
		q.Set("child_id", strconv.FormatInt(f.ChildID, 10))
	}
	if f.StartDate != "" {
		q.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		q.Set("end_date", f.EndDate)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// Pagination is the paging block of list responses
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// BehaviorPage is one page of behavior records
type BehaviorPage struct {
	Behaviors  []models.BehaviorRecord `json:"behaviors"`
	Pagination Pagination              `json:"pagination"`
}

// RecordBehavior awards or deducts points for a child
func (c *Client) RecordBehavior(ctx context.Context, in BehaviorInput) (*models.BehaviorRecord, error) {
	var record models.BehaviorRecord
	if err := c.post(ctx, "/behaviors", in, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBehaviors returns behavior records visible to the signed-in user
func (c *Client) ListBehaviors(ctx context.Context, filter BehaviorFilter) (*BehaviorPage, error) {
	path := "/behaviors"
	if q := filter.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page BehaviorPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// BehaviorTrend returns daily totals for the last days days, optionally for one child
func (c *Client) BehaviorTrend(ctx context.Context, childID int64, days int) ([]models.TrendPoint, error) {
	q := url.Values{}
	if childID > 0 {
		q.Set("child_id", strconv.FormatInt(childID, 10))
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var resp struct {
		TrendData []models.TrendPoint `json:"trend_data"`
	}
	if err := c.get(ctx, "/behaviors/trend?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.TrendData, nil
}

// GetStatistics returns the report for period (week, month, quarter, year), optionally for one child
func (c *Client) GetStatistics(ctx context.Context, period string, childID int64) (*models.Statistics, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if childID > 0 {
		q.Set("child_id", strconv.FormatInt(childID, 10))
	}
	var stats models.Statistics
	if err := c.get(ctx, "/statistics?"+q.Encode(), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
