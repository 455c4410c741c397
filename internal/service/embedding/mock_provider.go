package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider provides a deterministic embedding implementation for testing
// and development. Texts sharing words produce similar vectors, so similarity
// ordering in tests is stable without a real model.
type MockProvider struct {
	dimensions int
	available  bool
}

// NewMockProvider creates a new mock embedding provider.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockProvider{
		dimensions: dimensions,
		available:  true,
	}
}

// SetAvailable toggles provider availability, for failure-path tests.
func (m *MockProvider) SetAvailable(available bool) {
	m.available = available
}

// Embed hashes each word into a bucket of the vector and normalizes the
// result to unit length.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if !m.available {
		return nil, fmt.Errorf("mock embedding provider is not available")
	}
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	vector := make([]float32, m.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[int(h.Sum32())%m.dimensions]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return nil, fmt.Errorf("text produced an empty vector")
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}

	return vector, nil
}

// Dimensions returns the mock vector width.
func (m *MockProvider) Dimensions() int {
	return m.dimensions
}

// IsAvailable returns whether the mock provider is available.
func (m *MockProvider) IsAvailable() bool {
	return m.available
}
