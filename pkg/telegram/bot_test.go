package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lila-ai/lila-go/pkg/core"
)

// fakeHandler records the calls the bot makes into the agent.
type fakeHandler struct {
	mu        sync.Mutex
	responded []string
	after     int
	forgotten int
	forgetErr error
}

func (h *fakeHandler) Respond(ctx context.Context, userID int64, message string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responded = append(h.responded, message)
	return "echo: " + message
}

func (h *fakeHandler) AfterMessage(ctx context.Context, userID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.after++
	return nil
}

func (h *fakeHandler) Forget(ctx context.Context, userID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forgotten++
	return h.forgetErr
}

// fakeAPI is an httptest-backed Bot API server. It serves one batch of
// updates, then empty batches, and records every sendMessage text.
type fakeAPI struct {
	mu       sync.Mutex
	updates  []map[string]any
	sent     []string
	served   bool
	sendSeen chan struct{}
}

func newFakeAPI(updates ...map[string]any) *fakeAPI {
	return &fakeAPI{updates: updates, sendSeen: make(chan struct{}, 16)}
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			f.mu.Lock()
			var result any = []any{}
			if !f.served {
				f.served = true
				result = f.updates
			}
			f.mu.Unlock()
			writeAPIResponse(w, result)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var payload struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(body, &payload)
			f.mu.Lock()
			f.sent = append(f.sent, payload.Text)
			f.mu.Unlock()
			f.sendSeen <- struct{}{}
			writeAPIResponse(w, map[string]any{"message_id": 1})
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeAPI) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func writeAPIResponse(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func messageUpdate(id int64, text string) map[string]any {
	return messageUpdateFrom(id, 7, text)
}

func messageUpdateFrom(id, from int64, text string) map[string]any {
	return map[string]any{
		"update_id": id,
		"message": map[string]any{
			"text": text,
			"chat": map[string]any{"id": id * 100},
			"from": map[string]any{"id": from},
		},
	}
}

func runBot(t *testing.T, api *fakeAPI, handler Handler) {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	bot := New(core.TelegramConfig{Token: "test-token", PollTimeoutSeconds: 1}, handler, nil)
	bot.baseURL = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bot.Run(ctx)
	}()

	select {
	case <-api.sendSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the bot to send a reply")
	}
	cancel()
	<-done
}

func TestBot_RoutesMessageThroughHandler(t *testing.T) {
	handler := &fakeHandler{}
	api := newFakeAPI(messageUpdate(1, "hello lila"))

	runBot(t, api, handler)

	handler.mu.Lock()
	responded := append([]string(nil), handler.responded...)
	handler.mu.Unlock()
	require.Equal(t, []string{"hello lila"}, responded)
	assert.Contains(t, api.sentMessages(), "echo: hello lila")

	// AfterMessage runs after the reply is sent, on the same goroutine.
	assert.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return handler.after == 1
	}, 2*time.Second, 10*time.Millisecond, "AfterMessage must follow every reply")
}

func TestBot_StartCommandGreetsWithoutHandler(t *testing.T) {
	handler := &fakeHandler{}
	api := newFakeAPI(messageUpdate(1, "/start"))

	runBot(t, api, handler)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Empty(t, handler.responded)
	assert.Zero(t, handler.after)

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "I'm Lila")
}

func TestBot_ForgetCommandInvokesForget(t *testing.T) {
	handler := &fakeHandler{}
	api := newFakeAPI(messageUpdate(1, "/forget"))

	runBot(t, api, handler)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, 1, handler.forgotten)
	assert.Empty(t, handler.responded)
	assert.Contains(t, api.sentMessages(), "Done. I no longer remember anything about you.")
}

func TestBot_ForgetFailureApologizes(t *testing.T) {
	handler := &fakeHandler{forgetErr: fmt.Errorf("disk on fire")}
	api := newFakeAPI(messageUpdate(1, "/forget"))

	runBot(t, api, handler)

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "couldn't forget")
}

// sequenceHandler records the order of handler calls and dawdles inside
// Respond so any concurrent dispatch of same-user messages would show
// up as interleaved events.
type sequenceHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *sequenceHandler) record(event string) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *sequenceHandler) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *sequenceHandler) Respond(ctx context.Context, userID int64, message string) string {
	h.record(fmt.Sprintf("respond:%d:%s", userID, message))
	time.Sleep(20 * time.Millisecond)
	return "ok"
}

func (h *sequenceHandler) AfterMessage(ctx context.Context, userID int64) error {
	h.record(fmt.Sprintf("after:%d", userID))
	return nil
}

func (h *sequenceHandler) Forget(ctx context.Context, userID int64) error { return nil }

func TestBot_SameUserMessagesHandledInArrivalOrder(t *testing.T) {
	handler := &sequenceHandler{}
	api := newFakeAPI(
		messageUpdateFrom(1, 7, "first"),
		messageUpdateFrom(2, 7, "second"),
	)
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	bot := New(core.TelegramConfig{Token: "test-token", PollTimeoutSeconds: 1}, handler, nil)
	bot.baseURL = server.URL

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bot.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(handler.recorded()) == 4
	}, 5*time.Second, 10*time.Millisecond, "both messages should be fully handled")
	cancel()
	<-done

	// One message's post-processing completes before the next message
	// starts; same-user handling never interleaves or reorders.
	assert.Equal(t, []string{
		"respond:7:first",
		"after:7",
		"respond:7:second",
		"after:7",
	}, handler.recorded())
}

// blockingHandler parks the first user's Respond until released.
type blockingHandler struct {
	blockUser int64
	release   chan struct{}
	fakeHandler
}

func (h *blockingHandler) Respond(ctx context.Context, userID int64, message string) string {
	if userID == h.blockUser {
		<-h.release
	}
	return h.fakeHandler.Respond(ctx, userID, message)
}

func TestBot_DifferentUsersDoNotQueueBehindEachOther(t *testing.T) {
	handler := &blockingHandler{blockUser: 7, release: make(chan struct{})}
	defer close(handler.release)

	api := newFakeAPI(
		messageUpdateFrom(1, 7, "slow user"),
		messageUpdateFrom(2, 8, "quick user"),
	)

	runBot(t, api, handler)

	assert.Contains(t, api.sentMessages(), "echo: quick user",
		"user 8 must be answered while user 7's handler is parked")
}

func TestBot_SkipsNonTextUpdates(t *testing.T) {
	handler := &fakeHandler{}
	api := newFakeAPI(
		map[string]any{"update_id": int64(1)},
		messageUpdate(2, "after the gap"),
	)

	runBot(t, api, handler)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Equal(t, []string{"after the gap"}, handler.responded)
}
