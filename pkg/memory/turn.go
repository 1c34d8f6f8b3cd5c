// Package memory implements the per-user memory lifecycle: the
// append-only turn log, the rolling summary buffer, conversation
// boundary detection, short-term compression, the persistent user
// profile, the long-term index, and per-user locking.
package memory

import (
	"strings"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleHuman marks a message written by the user.
	RoleHuman Role = "human"

	// RoleAgent marks a message written by the agent.
	RoleAgent Role = "agent"
)

// Turn is one message with its write-time timestamp. Turns are
// immutable once persisted.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Exchange is one completed human/agent pair. Pairs are structural:
// the buffer stores exchanges rather than a flat alternating log, so
// "the last pair" is never recovered by positional slicing.
type Exchange struct {
	User  Turn `json:"user"`
	Agent Turn `json:"agent"`
}

// Turns flattens the exchange into its two turns, user first.
func (e Exchange) Turns() []Turn {
	return []Turn{e.User, e.Agent}
}

// flattenExchanges converts exchanges to the flat turn sequence used
// for persistence.
func flattenExchanges(exchanges []Exchange) []Turn {
	turns := make([]Turn, 0, len(exchanges)*2)
	for _, e := range exchanges {
		turns = append(turns, e.User, e.Agent)
	}
	return turns
}

// pairTurns groups a flat turn sequence back into exchanges. A dangling
// unpaired turn at the end is dropped; the store only ever persists
// complete pairs, so this shows up only with hand-edited files.
func pairTurns(turns []Turn) []Exchange {
	var exchanges []Exchange
	for i := 0; i+1 < len(turns); i += 2 {
		exchanges = append(exchanges, Exchange{User: turns[i], Agent: turns[i+1]})
	}
	return exchanges
}

// renderTurn renders a single turn as a transcript line.
func renderTurn(t Turn) string {
	if t.Role == RoleAgent {
		return "AI: " + t.Content
	}
	return "Human: " + t.Content
}

// RenderTranscript renders a summary plus turns as a plain-text
// transcript, the form consumed by the summarization and extraction
// calls and by long-term similarity queries.
func RenderTranscript(summary string, turns []Turn) string {
	var sb strings.Builder
	if summary != "" {
		sb.WriteString(summary)
	}
	for _, t := range turns {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(renderTurn(t))
	}
	return sb.String()
}
