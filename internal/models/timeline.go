package models

import "time"

// TimelinePoint represents a single compact point in a connectivity timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail carries extra information for problematic buckets.
type TimelineDetail struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// BoardTimeline aggregates timeline points for a single board page.
type BoardTimeline struct {
	BoardID   string          `json:"board_id"`
	BoardName string          `json:"board_name"`
	Timeline  []TimelinePoint `json:"timeline"`
}
