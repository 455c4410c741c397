// Package embedding provides text embedding capabilities for similarity search.
package embedding

import (
	"context"
)

// Provider defines the interface for embedding providers (OpenAI, local models, etc.)
type Provider interface {
	// Embed computes a vector representation of the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of the vectors the provider produces.
	Dimensions() int

	// IsAvailable reports whether the provider can serve requests.
	IsAvailable() bool
}
