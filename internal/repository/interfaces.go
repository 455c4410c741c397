// Package repository defines the persistence interfaces the engine consumes.
// The engine is read-only with respect to these stores except for usage-event
// appends, which are at-least-once.
package repository

import (
	"context"
	"time"

	"promptvault-backend/internal/domain"
)

// FragmentQuery filters fragment lookups. All queries are owner-scoped.
type FragmentQuery struct {
	OwnerID string
	IDs     []string            // restrict to these ids, when non-empty
	Type    domain.FragmentType // restrict to one fragment type, when set
	Limit   int                 // 0 means no limit
}

// EventQuery selects usage events in a trailing window.
type EventQuery struct {
	OwnerID string
	Since   time.Time
	Until   time.Time // zero value means "now"
}

// FragmentReader provides read access to the fragment store.
type FragmentReader interface {
	// FindFragmentByID returns the fragment or a NotFound error.
	FindFragmentByID(ctx context.Context, ownerID, fragmentID string) (*domain.Fragment, error)

	// FindFragments returns the owner's fragments matching the query.
	FindFragments(ctx context.Context, query FragmentQuery) ([]domain.Fragment, error)
}

// RelationshipReader provides read access to typed fragment relationships.
type RelationshipReader interface {
	// FindRelationships returns all outgoing edges of one fragment.
	FindRelationships(ctx context.Context, ownerID, fragmentID string) ([]domain.Relationship, error)

	// FindRelationshipsForSet returns outgoing edges for each id in the set.
	FindRelationshipsForSet(ctx context.Context, ownerID string, fragmentIDs []string) (map[string][]domain.Relationship, error)
}

// UsageEventStore provides append and windowed-read access to the event log.
type UsageEventStore interface {
	// AppendEvent appends one usage event. At-least-once semantics.
	AppendEvent(ctx context.Context, event domain.UsageEvent) error

	// FindEvents returns the owner's events within the window, oldest first.
	FindEvents(ctx context.Context, query EventQuery) ([]domain.UsageEvent, error)
}

// EmbeddingReader provides read access to stored fragment vectors.
type EmbeddingReader interface {
	// FindVectors returns vectors for the given fragment ids, or all of the
	// owner's vectors when ids is empty. Fragments without a computed vector
	// are simply absent from the result.
	FindVectors(ctx context.Context, ownerID string, fragmentIDs []string) ([]domain.EmbeddingVector, error)
}

// SimilarityMatch is one result of a vector search.
type SimilarityMatch struct {
	FragmentID string
	Similarity float64 // cosine similarity in [0,1]
}

// SimilarityIndex answers nearest-neighbor and pairwise similarity queries
// over the owner's stored vectors.
type SimilarityIndex interface {
	// Search returns up to k fragments most similar to the query vector,
	// descending by similarity, all at or above minSimilarity.
	Search(ctx context.Context, ownerID string, query []float32, k int, minSimilarity float64) ([]SimilarityMatch, error)

	// Pairwise returns the similarity for every unordered pair among the
	// given fragments in one batch. Fragments without vectors are skipped.
	Pairwise(ctx context.Context, ownerID string, fragmentIDs []string) ([]PairSimilarity, error)
}

// PairSimilarity is one pairwise similarity between two fragments.
type PairSimilarity struct {
	SourceID   string
	TargetID   string
	Similarity float64
}

// UsageEventPublisher publishes tracked usage events to the event bus for
// downstream consumers. Publishing failures must not fail the append.
type UsageEventPublisher interface {
	PublishUsage(ctx context.Context, event domain.UsageEvent) error
}
