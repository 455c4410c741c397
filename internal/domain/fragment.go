// Package domain defines the core entities of the context engine.
package domain

import (
	"time"
)

// FragmentType classifies a context fragment.
type FragmentType string

const (
	FragmentTypeProfile FragmentType = "profile"
	FragmentTypeProject FragmentType = "project"
	FragmentTypeTask    FragmentType = "task"
	FragmentTypeSnippet FragmentType = "snippet"
	FragmentTypeAdhoc   FragmentType = "adhoc"
)

// ValidFragmentType reports whether t is one of the known fragment types.
func ValidFragmentType(t FragmentType) bool {
	switch t {
	case FragmentTypeProfile, FragmentTypeProject, FragmentTypeTask, FragmentTypeSnippet, FragmentTypeAdhoc:
		return true
	}
	return false
}

// Fragment is a reusable piece of context text owned by a single user.
// The engine treats fragments as read-only input; mutation happens in the
// fragment store, outside this engine.
type Fragment struct {
	ID         string       `json:"id"`
	OwnerID    string       `json:"ownerId"`
	Type       FragmentType `json:"type"`
	Name       string       `json:"name"`
	Text       string       `json:"text"`
	TokenCount int          `json:"tokenCount"`
	Tags       []string     `json:"tags,omitempty"`
	Priority   int          `json:"priority"` // user-set, 0-10
	UsageCount int          `json:"usageCount"`
	LastUsedAt *time.Time   `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// EmbeddingVector is the fixed-length vector for a fragment's current text.
// Vectors are produced externally; a vector is stale if the fragment's text
// changed after it was computed, which is the fragment store's concern.
type EmbeddingVector struct {
	FragmentID string    `json:"fragmentId"`
	OwnerID    string    `json:"ownerId"`
	Vector     []float32 `json:"vector"`
	ComputedAt time.Time `json:"computedAt"`
}
