package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SummaryFileName is the overflow summary file inside a user's memory
// directory.
const SummaryFileName = "summary.txt"

// Buffer is the rolling summary buffer: a bounded window of recent
// exchanges backed by a textual summary that absorbs older exchanges
// once the token budget is exceeded.
//
// Every mutation persists both the turn log and the summary before
// returning; there is no batching. A Buffer is loaded fresh per request
// and is not safe for concurrent use; callers hold the per-user lock.
type Buffer struct {
	store       *TurnStore
	summaryPath string
	counter     TokenCounter
	strategy    PruneStrategy
	budget      int

	summary   string
	exchanges []Exchange
}

// OpenBuffer loads a user's rolling buffer from dir, creating the
// directory on first use. Missing or corrupt files load as empty state.
func OpenBuffer(dir string, budget int, counter TokenCounter, strategy PruneStrategy) (*Buffer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("buffer: create dir: %w", err)
	}

	store := NewTurnStore(dir)
	turns, err := store.Load()
	if err != nil {
		return nil, err
	}

	summaryPath := filepath.Join(dir, SummaryFileName)
	summary := ""
	if data, err := os.ReadFile(summaryPath); err == nil {
		summary = string(data)
	}

	return &Buffer{
		store:       store,
		summaryPath: summaryPath,
		counter:     counter,
		strategy:    strategy,
		budget:      budget,
		summary:     summary,
		exchanges:   pairTurns(turns),
	}, nil
}

// SaveContext appends a completed human/agent pair, prunes if the
// budget is exceeded, and persists turns and summary synchronously.
func (b *Buffer) SaveContext(ctx context.Context, input, output string) error {
	turns, err := b.store.Append(
		Turn{Role: RoleHuman, Content: input},
		Turn{Role: RoleAgent, Content: output},
	)
	if err != nil {
		return err
	}
	b.exchanges = pairTurns(turns)

	st := &State{Summary: b.summary, Exchanges: b.exchanges, Budget: b.budget}
	if err := b.strategy.Prune(ctx, st, b.counter); err != nil {
		return err
	}
	b.summary = st.Summary
	b.exchanges = st.Exchanges

	if err := b.store.Overwrite(flattenExchanges(b.exchanges)); err != nil {
		return err
	}
	return b.writeSummary()
}

// LoadContext returns the current summary and retained exchanges, the
// inputs for prompt assembly.
func (b *Buffer) LoadContext() (string, []Exchange) {
	return b.summary, b.exchanges
}

// Summary returns the current overflow summary.
func (b *Buffer) Summary() string { return b.summary }

// Exchanges returns the retained exchanges, oldest first.
func (b *Buffer) Exchanges() []Exchange { return b.exchanges }

// TurnCount returns the number of retained turns.
func (b *Buffer) TurnCount() int { return len(b.exchanges) * 2 }

// LastExchange returns the most recent exchange, if any.
func (b *Buffer) LastExchange() (Exchange, bool) {
	if len(b.exchanges) == 0 {
		return Exchange{}, false
	}
	return b.exchanges[len(b.exchanges)-1], true
}

// Transcript renders the summary plus retained turns as plain text.
func (b *Buffer) Transcript() string {
	return RenderTranscript(b.summary, flattenExchanges(b.exchanges))
}

// Cost returns the current token cost of the buffer.
func (b *Buffer) Cost() int {
	st := &State{Summary: b.summary, Exchanges: b.exchanges}
	return st.Cost(b.counter)
}

// Clear resets summary and turns to empty and persists immediately.
func (b *Buffer) Clear() error {
	if err := b.store.Clear(); err != nil {
		return err
	}
	b.exchanges = nil
	b.summary = ""
	return b.writeSummary()
}

// Reseed clears the buffer and re-seeds it with a single exchange,
// preserving the exchange's original timestamps. Used when a topic
// shift evicts everything except the just-started conversation.
func (b *Buffer) Reseed(ex Exchange) error {
	b.exchanges = []Exchange{ex}
	b.summary = ""
	if err := b.store.Overwrite(flattenExchanges(b.exchanges)); err != nil {
		return err
	}
	return b.writeSummary()
}

// SummaryWithoutLast computes what the summary would be if everything
// except the final exchange were folded into it: a snapshot of the
// buffer minus the last pair is pruned down to the empty-buffer
// baseline. Pure side-computation; the live buffer and its persisted
// state are untouched.
func (b *Buffer) SummaryWithoutLast(ctx context.Context) (string, error) {
	exchanges := b.exchanges
	if len(exchanges) > 0 {
		exchanges = exchanges[:len(exchanges)-1]
	}
	snapshot := &State{
		Summary:   b.summary,
		Exchanges: append([]Exchange(nil), exchanges...),
		Budget:    EmptyBufferTokens,
	}
	if err := b.strategy.Prune(ctx, snapshot, b.counter); err != nil {
		return "", err
	}
	return snapshot.Summary, nil
}

func (b *Buffer) writeSummary() error {
	if err := os.WriteFile(b.summaryPath, []byte(b.summary), 0o644); err != nil {
		return fmt.Errorf("buffer: write summary: %w", err)
	}
	return nil
}
