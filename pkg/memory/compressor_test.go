package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lila-ai/lila-go/pkg/memory"
)

func newTestCompressor(classifier memory.Classifier) *memory.Compressor {
	return memory.NewCompressor(memory.NewDetector(classifier))
}

func TestCompressor_ShortHistoryReturnsNone(t *testing.T) {
	ctx := context.Background()
	compressor := newTestCompressor(failClassifier{t})

	// Empty memory.
	buf := openTestBuffer(t, t.TempDir(), 6000, failSummarizer{t})
	result, err := compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	assert.Nil(t, result)

	// A single stored exchange: nothing before it to evict.
	require.NoError(t, buf.SaveContext(ctx, "hi", "hello"))
	result, err = compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	assert.Nil(t, result)

	_, exchanges := buf.LoadContext()
	assert.Len(t, exchanges, 1, "evaluate must not mutate state")
}

func TestCompressor_ContinueNeverPromotes(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t, t.TempDir(), 6000, &stubSummarizer{})
	compressor := newTestCompressor(&stubClassifier{class: memory.ClassContinue})

	require.NoError(t, buf.SaveContext(ctx, "i watched dune", "did you like it?"))

	require.NoError(t, buf.SaveContext(ctx, "loved it", "great movie"))
	result, err := compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, buf.SaveContext(ctx, "the sandworms especially", "they are iconic"))
	result, err = compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	assert.Nil(t, result)

	// The rolling buffer keeps accumulating.
	_, exchanges := buf.LoadContext()
	assert.Len(t, exchanges, 3)
}

func TestCompressor_NewTopicPromotesSegment(t *testing.T) {
	ctx := context.Background()
	buf := openTestBuffer(t, t.TempDir(), 6000, &stubSummarizer{})
	compressor := newTestCompressor(&stubClassifier{class: memory.ClassNew})

	require.NoError(t, buf.SaveContext(ctx, "i watched dune", "did you like it?"))
	require.NoError(t, buf.SaveContext(ctx, "how do i cook rice", "rinse it first"))

	result, err := compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Segment, "closed segment folds into a promotable summary")
	assert.Contains(t, result.Discarded, "i watched dune")
	assert.NotContains(t, result.Discarded, "how do i cook rice")
	assert.Equal(t, "how do i cook rice", result.LastExchange.User.Content)

	// Evaluate is pure; the orchestrator applies the result.
	_, exchanges := buf.LoadContext()
	assert.Len(t, exchanges, 2)
}

func TestCompressor_LongGapBetweenPairsPromotes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	old := time.Now().Add(-24 * time.Hour)
	turns := append(pairAt("hi", "whats up", old), pairAt("new day", "morning!", time.Now())...)
	seedTurns(t, dir, turns)
	buf := openTestBuffer(t, dir, 6000, &stubSummarizer{})

	// failClassifier: a day-long gap decides without a classify call.
	compressor := newTestCompressor(failClassifier{t})

	result, err := compressor.Evaluate(ctx, buf)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "new day", result.LastExchange.User.Content)
}
