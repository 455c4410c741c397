package domain

import "time"

// UsageEvent records one use of a fragment. Events are append-only and are
// the sole input to the predictive engine; duplicates from at-least-once
// delivery only nudge confidence scores, never corrupt ranking.
type UsageEvent struct {
	UserID             string        `json:"userId"`
	FragmentID         string        `json:"fragmentId"`
	ActivityType       string        `json:"activityType,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
	Success            bool          `json:"success"`
	Duration           time.Duration `json:"duration,omitempty"`
	RelatedFragmentIDs []string      `json:"relatedFragmentIds,omitempty"`
}
