// Package dto defines the HTTP request and response shapes of the engine API.
package dto

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation on a request body.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// ScoreAndSelectRequest asks for a budget-constrained composition. Exactly
// one of GoalText and SourceFragmentID must be set; the handler enforces the
// exclusivity, the tags enforce ranges.
type ScoreAndSelectRequest struct {
	GoalText         string  `json:"goalText" validate:"omitempty,max=4000"`
	SourceFragmentID string  `json:"sourceFragmentId" validate:"omitempty,max=128"`
	TokenBudget      int     `json:"tokenBudget" validate:"required,gt=0"`
	MaxItems         int     `json:"maxItems" validate:"omitempty,gte=0,lte=100"`
	MinSimilarity    float64 `json:"minSimilarity" validate:"gte=0,lte=1"`
}

// BuildGraphRequest asks for the similarity graph over a fragment set.
type BuildGraphRequest struct {
	FragmentIDs     []string `json:"fragmentIds" validate:"omitempty,max=200,dive,max=128"`
	MinSimilarity   float64  `json:"minSimilarity" validate:"gte=0,lte=1"`
	MaxEdgesPerNode int      `json:"maxEdgesPerNode" validate:"omitempty,gte=0,lte=50"`
}

// FindPathsRequest asks for shortest paths between two fragments.
type FindPathsRequest struct {
	SourceID      string  `json:"sourceId" validate:"required,max=128"`
	TargetID      string  `json:"targetId" validate:"required,max=128"`
	MaxDepth      int     `json:"maxDepth" validate:"omitempty,gte=0,lte=10"`
	MinSimilarity float64 `json:"minSimilarity" validate:"gte=0,lte=1"`
}

// PredictionsRequest asks for proactive suggestions.
type PredictionsRequest struct {
	CurrentActivity   string   `json:"currentActivity" validate:"omitempty,max=2000"`
	RecentFragmentIDs []string `json:"recentFragmentIds" validate:"omitempty,max=50,dive,max=128"`
	Limit             int      `json:"limit" validate:"omitempty,gte=0,lte=50"`
}

// TrackUsageRequest records one fragment usage.
type TrackUsageRequest struct {
	FragmentID         string   `json:"fragmentId" validate:"required,max=128"`
	ActivityType       string   `json:"activityType" validate:"omitempty,max=200"`
	Success            bool     `json:"success"`
	DurationS          float64  `json:"durationS" validate:"gte=0"`
	RelatedFragmentIDs []string `json:"relatedFragmentIds" validate:"omitempty,max=50,dive,max=128"`
}
