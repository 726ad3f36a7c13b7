package models

import "time"

// BehaviorRecord is a single points award or deduction
type BehaviorRecord struct {
	ID           int64     `json:"id"`
	ChildID      int64     `json:"child_id"`
	ChildName    string    `json:"child_name,omitempty"`
	RecorderID   int64     `json:"recorder_id"`
	RecorderName string    `json:"recorder_name,omitempty"`
	BehaviorType string    `json:"behavior_type"`
	BehaviorDesc string    `json:"behavior_desc"`
	ScoreChange  int       `json:"score_change"`
	ImageURL     string    `json:"image_url,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// TrendPoint is one day of the behavior trend
type TrendPoint struct {
	Date              string `json:"date"`
	PositiveBehaviors int    `json:"positive_behaviors"`
	NegativeBehaviors int    `json:"negative_behaviors"`
	TotalPoints       int    `json:"total_points"`
}

// CategoryStat aggregates behaviors of one type
type CategoryStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Points   int    `json:"points"`
}

// ChildStat summarizes one child over the statistics period
type ChildStat struct {
	ChildID        int64  `json:"child_id"`
	ChildName      string `json:"child_name"`
	TotalBehaviors int    `json:"total_behaviors"`
	PositiveRate   int    `json:"positive_rate"`
	TotalPoints    int    `json:"total_points"`
	Level          int    `json:"level"`
}

// OverallStat summarizes every visible child
type OverallStat struct {
	TotalBehaviors int `json:"total_behaviors"`
	PositiveRate   int `json:"positive_rate"`
	TotalPoints    int `json:"total_points"`
	ActiveChildren int `json:"active_children"`
}

// Statistics is the report returned by the statistics endpoint
type Statistics struct {
	DailyStats    []TrendPoint   `json:"daily_stats"`
	CategoryStats []CategoryStat `json:"category_stats"`
	ChildrenStats []ChildStat    `json:"children_stats"`
	OverallStats  OverallStat    `json:"overall_stats"`
}
