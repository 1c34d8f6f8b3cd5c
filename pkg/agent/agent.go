package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lila-ai/lila-go/pkg/core"
	"github.com/lila-ai/lila-go/pkg/embedder"
	"github.com/lila-ai/lila-go/pkg/llm"
	"github.com/lila-ai/lila-go/pkg/memory"
	"github.com/lila-ai/lila-go/pkg/storage"
)

// Lila is the orchestrator. Each incoming request passes through: load
// memory under the user's lock, assemble context, call the model,
// persist the new exchange. A second, deferred call (AfterMessage) runs
// the compressor and promotes closed segments to long-term storage.
//
// Memory objects are loaded fresh per request; only the lock registry
// is cached across requests. Lila is safe for concurrent use: requests
// for the same user serialize on the per-user lock, different users
// never block each other.
type Lila struct {
	dataDir     string
	tokenBudget int

	chat    llm.Provider
	fast    llm.Provider
	counter memory.TokenCounter
	index   *memory.LongTermIndex
	locks   *memory.LockRegistry
	logger  *slog.Logger
	clock   func() time.Time
}

// New creates the orchestrator from already-constructed collaborators.
// chat generates user-visible replies; fast runs summarization,
// classification and profile extraction.
func New(cfg *core.Config, chat, fast llm.Provider, emb embedder.Provider, store storage.VectorStore, counter memory.TokenCounter, logger *slog.Logger) (*Lila, error) {
	if logger == nil {
		logger = slog.Default()
	}
	index, err := memory.NewLongTermIndex(store, emb, logger)
	if err != nil {
		return nil, core.NewOpError("New", err)
	}
	return &Lila{
		dataDir:     cfg.Memory.DataDir,
		tokenBudget: cfg.Memory.TokenBudget,
		chat:        chat,
		fast:        fast,
		counter:     counter,
		index:       index,
		locks:       memory.NewLockRegistry(),
		logger:      logger,
		clock:       time.Now,
	}, nil
}

// Respond handles one incoming message and returns the reply text.
//
// Failures never escape as errors: any failure during memory load, the
// model call or persistence is converted into a user-visible text
// answer, and memory is mutated only after the model call succeeds.
func (l *Lila) Respond(ctx context.Context, userID int64, message string) string {
	uid := formatUserID(userID)
	defer l.locks.Lock(uid)()

	log := l.logger.With("user_id", uid)
	log.Info("handling message")

	buf, profile, err := l.loadMemory(uid)
	if err != nil {
		log.Error("memory load failed", "error", err)
		return errorReply(err)
	}

	messages := l.assembleContext(ctx, uid, buf, profile, message)

	answer, err := l.chat.GenerateWithMessages(ctx, messages)
	if err != nil {
		log.Error("model call failed", "error", err)
		return errorReply(err)
	}

	if err := buf.SaveContext(ctx, message, answer); err != nil {
		log.Error("persist failed", "error", err)
		return errorReply(err)
	}

	log.Info("handled message")
	return answer
}

// AfterMessage runs the deferred post-processing step for the user's
// most recent exchange: evaluate the compressor and, when a topic shift
// closed a segment, promote it.
//
// Promotion order is deliberate: index add and profile update happen
// before the buffer is reseeded, so a crash between the steps can only
// duplicate work, never lose a promoted segment.
//
// AfterMessage is fail-soft like Respond: it returns the error for the
// caller to log, but the buffer is left in a consistent state.
func (l *Lila) AfterMessage(ctx context.Context, userID int64) error {
	uid := formatUserID(userID)
	defer l.locks.Lock(uid)()

	log := l.logger.With("user_id", uid)

	buf, profile, err := l.loadMemory(uid)
	if err != nil {
		return core.NewOpError("AfterMessage", err)
	}

	compressor := memory.NewCompressor(memory.NewDetector(classifier{llm: l.fast}))
	result, err := compressor.Evaluate(ctx, buf)
	if err != nil {
		return core.NewOpError("AfterMessage", err)
	}
	if result == nil {
		return nil
	}

	log.Info("promoting segment to long-term memory")
	if err := l.index.Add(ctx, uid, result.Segment); err != nil {
		return core.NewOpError("AfterMessage", err)
	}
	if err := profile.Update(ctx, result.Discarded); err != nil {
		return core.NewOpError("AfterMessage", err)
	}
	if err := buf.Reseed(result.LastExchange); err != nil {
		return core.NewOpError("AfterMessage", err)
	}
	return nil
}

// Forget erases everything known about the user: turn log, rolling
// summary, profile and long-term index. Idempotent; forgetting a
// never-seen user is a no-op.
func (l *Lila) Forget(ctx context.Context, userID int64) error {
	uid := formatUserID(userID)
	defer l.locks.Lock(uid)()

	if err := os.RemoveAll(l.userDir(uid)); err != nil {
		return core.NewOpError("Forget", err)
	}
	if err := l.index.Erase(ctx, uid); err != nil {
		return core.NewOpError("Forget", err)
	}
	l.logger.Info("memory forgotten", "user_id", uid)
	return nil
}

// assembleContext builds the chat completion input: persona, profile
// thought, an optional relevant long-term recollection, the rolling
// summary, the retained turns, and finally the new message.
func (l *Lila) assembleContext(ctx context.Context, uid string, buf *memory.Buffer, profile *memory.Profile, message string) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPrefix, l.clock().Format("2006-01-02 15:04"))},
		{Role: llm.RoleAssistant, Content: profileThought(profile.Text())},
	}

	if rec, ok := l.relevantRecollection(ctx, uid, buf); ok {
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: recollectionThought(rec)})
	}

	summary, exchanges := buf.LoadContext()
	if summary != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Summary of the conversation so far:\n" + summary,
		})
	}
	for _, e := range exchanges {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: e.User.Content},
			llm.Message{Role: llm.RoleAssistant, Content: e.Agent.Content},
		)
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: message})
}

// relevantRecollection fetches the best long-term match for the current
// short-term context. A cold or failing index yields no recollection.
func (l *Lila) relevantRecollection(ctx context.Context, uid string, buf *memory.Buffer) (memory.Recollection, bool) {
	exists, _ := l.index.Exists(ctx, uid)
	if !exists {
		return memory.Recollection{}, false
	}
	recs, err := l.index.Query(ctx, uid, buf.Transcript(), 1)
	if err != nil {
		l.logger.Warn("long-term query failed", "user_id", uid, "error", err)
		return memory.Recollection{}, false
	}
	if len(recs) == 0 {
		return memory.Recollection{}, false
	}
	return recs[0], true
}

func (l *Lila) loadMemory(uid string) (*memory.Buffer, *memory.Profile, error) {
	dir := l.userDir(uid)
	strategy := memory.NewSummarizeOverflow(summarizer{llm: l.fast})
	buf, err := memory.OpenBuffer(dir, l.tokenBudget, l.counter, strategy)
	if err != nil {
		return nil, nil, err
	}
	profile, err := memory.OpenProfile(dir, extractor{llm: l.fast, clock: l.clock})
	if err != nil {
		return nil, nil, err
	}
	return buf, profile, nil
}

func (l *Lila) userDir(uid string) string {
	return filepath.Join(l.dataDir, uid)
}

func formatUserID(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func errorReply(err error) string {
	return fmt.Sprintf("Error in telegram bot: %v. Report it to the developer.", err)
}
