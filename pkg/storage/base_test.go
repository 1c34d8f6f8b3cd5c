package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lila-ai/lila-go/pkg/storage"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, storage.CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, storage.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, storage.CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Degenerate inputs score zero rather than erroring.
	assert.Zero(t, storage.CosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Zero(t, storage.CosineSimilarity(nil, nil))
	assert.Zero(t, storage.CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestRankByScore(t *testing.T) {
	entries := []*storage.Entry{
		{Content: "low", Score: 0.1},
		{Content: "high", Score: 0.9},
		{Content: "mid", Score: 0.5},
	}

	ranked := storage.RankByScore(entries, 2)
	assert.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].Content)
	assert.Equal(t, "mid", ranked[1].Content)

	// No truncation without a positive limit.
	all := storage.RankByScore(entries, 0)
	assert.Len(t, all, 3)
}
