// Package telegram is the thin transport layer: a long-polling Telegram
// Bot API client that feeds incoming messages to the agent and sends
// its replies back. It carries no memory logic of its own.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lila-ai/lila-go/pkg/core"
)

// Handler is the agent surface the bot drives. One incoming message
// triggers Respond followed immediately by AfterMessage.
type Handler interface {
	Respond(ctx context.Context, userID int64, message string) string
	AfterMessage(ctx context.Context, userID int64) error
	Forget(ctx context.Context, userID int64) error
}

// Bot is a long-polling Telegram Bot API client.
type Bot struct {
	token   string
	baseURL string
	timeout int
	client  *http.Client
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	queues map[int64]chan incoming
}

// incoming is one queued message awaiting its user's worker.
type incoming struct {
	chatID int64
	text   string
}

// update mirrors the subset of the Bot API Update object the bot needs.
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"message"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// New creates a bot from transport configuration.
func New(cfg core.TelegramConfig, handler Handler, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.PollTimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Bot{
		token:   cfg.Token,
		baseURL: "https://api.telegram.org",
		timeout: timeout,
		client: &http.Client{
			// Must exceed the long-poll timeout or getUpdates times out client-side.
			Timeout: time.Duration(timeout+10) * time.Second,
		},
		handler: handler,
		logger:  logger,
		queues:  make(map[int64]chan incoming),
	}
}

// Run polls for updates until ctx is cancelled. Updates are dispatched
// to one worker per user, so a user's messages are answered and
// post-processed strictly in arrival order, and the post-processing of
// one message always completes before the next message is handled.
// Different users run concurrently.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot started")
	var offset int64
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bot stopped")
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("getUpdates failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			b.dispatch(ctx, u.Message.From.ID, u.Message.Chat.ID, u.Message.Text)
		}
	}
}

// dispatch enqueues the message on the user's worker, starting the
// worker on first contact. Enqueueing preserves arrival order; the
// worker drains one message fully (reply plus post-processing) before
// taking the next.
func (b *Bot) dispatch(ctx context.Context, userID, chatID int64, text string) {
	b.mu.Lock()
	queue, ok := b.queues[userID]
	if !ok {
		queue = make(chan incoming, 16)
		b.queues[userID] = queue
		go b.drain(ctx, userID, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- incoming{chatID: chatID, text: text}:
	case <-ctx.Done():
	}
}

func (b *Bot) drain(ctx context.Context, userID int64, queue chan incoming) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-queue:
			b.handleMessage(ctx, userID, in.chatID, in.text)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, userID, chatID int64, text string) {
	log := b.logger.With("user_id", userID)

	switch strings.TrimSpace(text) {
	case "/start":
		b.reply(ctx, chatID, "Hi! I'm Lila. Tell me about your day, or anything at all.")
		return
	case "/forget":
		if err := b.handler.Forget(ctx, userID); err != nil {
			log.Error("forget failed", "error", err)
			b.reply(ctx, chatID, "I couldn't forget right now, please try again.")
			return
		}
		b.reply(ctx, chatID, "Done. I no longer remember anything about you.")
		return
	}

	answer := b.handler.Respond(ctx, userID, text)
	b.reply(ctx, chatID, answer)

	if err := b.handler.AfterMessage(ctx, userID); err != nil {
		log.Error("post-message processing failed", "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if _, err := b.call(ctx, "sendMessage", payload); err != nil {
		b.logger.Error("sendMessage failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": b.timeout,
	}
	result, err := b.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}

func (b *Bot) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, api.Description)
	}
	return api.Result, nil
}
