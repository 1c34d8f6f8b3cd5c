package memory_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lila-ai/lila-go/pkg/memory"
)

// wordCounter counts whitespace-separated words, a cheap stand-in for
// the tiktoken counter.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// stubSummarizer folds dropped turns into a bracketed marker so tests
// can assert the summary is non-empty and covers the dropped content.
type stubSummarizer struct {
	calls int
}

func (s *stubSummarizer) Summarize(ctx context.Context, summary string, dropped []memory.Turn) (string, error) {
	s.calls++
	return fmt.Sprintf("[folded %d turns after %q]", len(dropped), summary), nil
}

// failSummarizer fails the test if the pruning path runs at all.
type failSummarizer struct {
	t *testing.T
}

func (f failSummarizer) Summarize(ctx context.Context, summary string, dropped []memory.Turn) (string, error) {
	f.t.Fatal("summarizer invoked unexpectedly")
	return "", nil
}

// stubClassifier returns a fixed classification and records requests.
type stubClassifier struct {
	class    memory.Classification
	requests []memory.ClassifyRequest
}

func (s *stubClassifier) Classify(ctx context.Context, req memory.ClassifyRequest) (memory.Classification, error) {
	s.requests = append(s.requests, req)
	return s.class, nil
}

// failClassifier fails the test if the classification call runs at all.
type failClassifier struct {
	t *testing.T
}

func (f failClassifier) Classify(ctx context.Context, req memory.ClassifyRequest) (memory.Classification, error) {
	f.t.Fatal("classifier invoked unexpectedly")
	return "", nil
}

// openTestBuffer opens a summarizing buffer in dir with the word
// counter.
func openTestBuffer(t *testing.T, dir string, budget int, summarizer memory.Summarizer) *memory.Buffer {
	t.Helper()
	buf, err := memory.OpenBuffer(dir, budget, wordCounter{}, memory.NewSummarizeOverflow(summarizer))
	require.NoError(t, err)
	return buf
}

// seedTurns writes a flat turn sequence with explicit timestamps, then
// reopens the buffer so it picks the turns up.
func seedTurns(t *testing.T, dir string, turns []memory.Turn) {
	t.Helper()
	require.NoError(t, memory.NewTurnStore(dir).Overwrite(turns))
}

// pairAt builds an exchange with both turns stamped at ts.
func pairAt(user, agent string, ts time.Time) []memory.Turn {
	return []memory.Turn{
		{Role: memory.RoleHuman, Content: user, Timestamp: ts},
		{Role: memory.RoleAgent, Content: agent, Timestamp: ts},
	}
}
