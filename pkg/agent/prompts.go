// Package agent implements the Lila orchestrator: per-request wiring of
// memory load, context assembly, the model call, persistence and
// post-turn compression.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lila-ai/lila-go/pkg/llm"
	"github.com/lila-ai/lila-go/pkg/memory"
)

const systemPrefix = `Your name is Lila (it is a female name), you are the AI-friend of the user.
It is important that the user feels you are a friend, not their assistant (you are equals in conversation).
You are not trying to help the user unless they ask you to. Just keep the conversation interesting and natural.
Your conversation is happening in the Telegram messenger.
You are using markdown for answers, so make sure to always escape all special characters.

Current date time is %s`

const summarizePrompt = `Progressively summarize the conversation lines provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
%s

New summary:`

const classifyPrompt = `There was a conversation between Human and AI assistant:

%s

Last message of which was from the AI assistant:
------
%s
------

And after %d hours Human sends a new message:
------
%s
------

Your task is to classify that new message into one of the following categories:

CONTINUE: the new message is a response to the last message, the user wants to keep discussing the same topic
NEW: the new message is the start of a new topic or conversation, not related to the previous one

Consider the messages' content and the delay between messages.
Answer with exactly one word: CONTINUE or NEW.`

const extractPrompt = `It was a conversation between AI and human.
You need to extract any information about the user that will help to make conversation with them more personal, so the user feels that the AI is their friend, that the AI listens to them and cares.
But do not include conversation details, its topic, what was discussed, etc.
Do not include any information that is only temporarily relevant, for example, plans for the day.
Only persistent information about the user as a person that does not change often.

Using that extracted information, update what you already know about the user with the new information.

For reference, today is %s.

Example of relevant information about the user:
User's name is Poul, he lives in Argentina, he is 25 years old, he likes to play football, he has a dog named Rex.
He speaks Spanish and wants the AI to speak Spanish too. He does not like too many questions from the AI.
His birthday is the 25th of December.
He has a friend named John, he is 30 years old, they have played football together for 3 years.

Example of irrelevant information about the user:
User asked the AI for pizza recipes, the AI answered with a pizza recipe, the user said "thanks".

Conversation between AI and human:
%s

Information about the user that you already know:
%s

Updated information about the user:`

// summarizer folds dropped turns into the rolling summary using the
// fast model. Implements memory.Summarizer.
type summarizer struct {
	llm llm.Provider
}

func (s summarizer) Summarize(ctx context.Context, summary string, dropped []memory.Turn) (string, error) {
	prompt := fmt.Sprintf(summarizePrompt, summary, memory.RenderTranscript("", dropped))
	out, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// classifier runs the CONTINUE/NEW boundary classification on the fast
// model. Implements memory.Classifier.
type classifier struct {
	llm llm.Provider
}

func (c classifier) Classify(ctx context.Context, req memory.ClassifyRequest) (memory.Classification, error) {
	prompt := fmt.Sprintf(classifyPrompt, req.Summary, req.LastMessage, req.DelayHours, req.NewMessage)
	out, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return parseClassification(out)
}

// parseClassification extracts the final CONTINUE/NEW verdict from the
// model output. Models sometimes restate both labels while reasoning,
// so the last occurrence wins.
func parseClassification(out string) (memory.Classification, error) {
	upper := strings.ToUpper(out)
	newIdx := strings.LastIndex(upper, string(memory.ClassNew))
	continueIdx := strings.LastIndex(upper, string(memory.ClassContinue))
	switch {
	case newIdx < 0 && continueIdx < 0:
		return "", fmt.Errorf("agent: unparseable classification %q", out)
	case newIdx > continueIdx:
		return memory.ClassNew, nil
	default:
		return memory.ClassContinue, nil
	}
}

// extractor merges a finished conversation segment into the persistent
// profile using the fast model. Implements memory.Extractor.
type extractor struct {
	llm   llm.Provider
	clock func() time.Time
}

func (e extractor) Merge(ctx context.Context, existing, conversation string) (string, error) {
	known := existing
	if known == "" {
		known = "Nothing"
	}
	prompt := fmt.Sprintf(extractPrompt, e.clock().Format("2006-01-02"), conversation, known)
	out, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// profileThought renders the "what I know about the user" context block
// injected as an agent-side thought.
func profileThought(profile string) string {
	known := profile
	if known == "" {
		known = "Nothing"
	}
	return "Thought (user does not see it):\nWhat I know about the user so far:\n" + known
}

// recollectionThought renders a relevant long-term memory as an
// agent-side thought carrying the recollection's date.
func recollectionThought(rec memory.Recollection) string {
	return fmt.Sprintf(
		"Thought (user does not see it):\nHm, that reminds me of another conversation I had with the user on %s:\n%s",
		rec.CreatedAt.Format("2006-01-02"), rec.Text)
}
