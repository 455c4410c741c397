// Package vectorindex implements similarity search over stored fragment
// vectors with exact cosine scoring. Owner corpora are small (hundreds of
// fragments), so a brute-force scan beats the operational cost of an
// external vector store.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"promptvault-backend/internal/repository"
)

// Index answers similarity queries by scanning the owner's stored vectors.
type Index struct {
	embeddings repository.EmbeddingReader
}

// NewIndex creates a similarity index over the embedding store.
func NewIndex(embeddings repository.EmbeddingReader) *Index {
	return &Index{embeddings: embeddings}
}

// Search returns up to k fragments most similar to the query vector,
// descending by similarity, filtered to minSimilarity.
func (idx *Index) Search(ctx context.Context, ownerID string, query []float32, k int, minSimilarity float64) ([]repository.SimilarityMatch, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	vectors, err := idx.embeddings.FindVectors(ctx, ownerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	matches := make([]repository.SimilarityMatch, 0, len(vectors))
	for _, v := range vectors {
		sim := cosineSimilarity(query, v.Vector)
		if sim < minSimilarity {
			continue
		}
		matches = append(matches, repository.SimilarityMatch{
			FragmentID: v.FragmentID,
			Similarity: sim,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].FragmentID < matches[j].FragmentID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Pairwise computes the similarity of every unordered pair among the given
// fragments in one batch. Fragments without stored vectors are skipped.
func (idx *Index) Pairwise(ctx context.Context, ownerID string, fragmentIDs []string) ([]repository.PairSimilarity, error) {
	vectors, err := idx.embeddings.FindVectors(ctx, ownerID, fragmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	// FindVectors returns vectors sorted by fragment id, so pair order and
	// the source<target orientation are deterministic.
	pairs := make([]repository.PairSimilarity, 0, len(vectors)*(len(vectors)-1)/2)
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			pairs = append(pairs, repository.PairSimilarity{
				SourceID:   vectors[i].FragmentID,
				TargetID:   vectors[j].FragmentID,
				Similarity: cosineSimilarity(vectors[i].Vector, vectors[j].Vector),
			})
		}
	}
	return pairs, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [0,1]. Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
