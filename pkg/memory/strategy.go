package memory

import "context"

// TokenCounter counts tokens the way the target model's tokenizer does.
// The tiktoken-backed implementation lives in pkg/tokenizer; tests
// substitute cheaper fakes.
type TokenCounter interface {
	Count(text string) int
}

// Summarizer folds dropped turns into an existing summary, producing a
// new summary that covers everything before the oldest retained turn.
type Summarizer interface {
	Summarize(ctx context.Context, summary string, dropped []Turn) (string, error)
}

// EmptyBufferTokens is the token cost of an empty buffer: the fixed
// baseline overhead of tokenizing an empty transcript. The pruning loop
// measures against this floor so it converges instead of chasing an
// unreachable zero.
const EmptyBufferTokens = 3

// State is a snapshot of the rolling buffer that a prune strategy may
// mutate: the overflow summary, the retained exchanges, and the budget
// in effect.
type State struct {
	Summary   string
	Exchanges []Exchange
	Budget    int
}

// Cost returns the token cost of the state: the empty-buffer baseline
// plus the summary plus every retained turn.
func (st *State) Cost(counter TokenCounter) int {
	cost := EmptyBufferTokens + counter.Count(st.Summary)
	for _, e := range st.Exchanges {
		cost += counter.Count(renderTurn(e.User))
		cost += counter.Count(renderTurn(e.Agent))
	}
	return cost
}

// PruneStrategy decides what happens when the buffer exceeds its
// budget. Strategies are injected into the buffer so the same buffer
// code serves the plain, windowed and summarizing variants.
type PruneStrategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Prune brings st back within st.Budget, or as close as dropping
	// exchanges allows.
	Prune(ctx context.Context, st *State, counter TokenCounter) error
}

// KeepAll never prunes; the buffer grows without bound. Useful for
// tests and short-lived sessions.
type KeepAll struct{}

// Name returns "keep_all".
func (KeepAll) Name() string { return "keep_all" }

// Prune is a no-op.
func (KeepAll) Prune(ctx context.Context, st *State, counter TokenCounter) error {
	return nil
}

// Window retains only the most recent Size exchanges, dropping older
// ones silently without summarizing them.
type Window struct {
	// Size is the number of exchanges to retain.
	Size int
}

// Name returns "window".
func (Window) Name() string { return "window" }

// Prune drops the oldest exchanges beyond the window size.
func (w Window) Prune(ctx context.Context, st *State, counter TokenCounter) error {
	if w.Size > 0 && len(st.Exchanges) > w.Size {
		st.Exchanges = append([]Exchange(nil), st.Exchanges[len(st.Exchanges)-w.Size:]...)
	}
	return nil
}

// SummarizeOverflow folds the oldest exchanges into the summary when
// the budget is exceeded. This is the default strategy.
type SummarizeOverflow struct {
	summarizer Summarizer
}

// NewSummarizeOverflow creates the summarizing strategy.
func NewSummarizeOverflow(summarizer Summarizer) *SummarizeOverflow {
	return &SummarizeOverflow{summarizer: summarizer}
}

// Name returns "summarize_overflow".
func (*SummarizeOverflow) Name() string { return "summarize_overflow" }

// Prune pops the oldest exchange while the cost exceeds the budget,
// then folds all popped turns into the summary with a single
// summarization call. With no exchanges left to pop the loop stops:
// the summary alone may cost more than a floor-level budget, and that
// is the defined terminal state.
func (s *SummarizeOverflow) Prune(ctx context.Context, st *State, counter TokenCounter) error {
	var dropped []Turn
	for st.Cost(counter) > st.Budget && len(st.Exchanges) > 0 {
		oldest := st.Exchanges[0]
		st.Exchanges = st.Exchanges[1:]
		dropped = append(dropped, oldest.Turns()...)
	}
	if len(dropped) == 0 {
		return nil
	}
	summary, err := s.summarizer.Summarize(ctx, st.Summary, dropped)
	if err != nil {
		return err
	}
	st.Summary = summary
	return nil
}
