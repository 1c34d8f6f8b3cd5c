package memory

import (
	"context"
	"math"
	"time"
)

// Classification is the two-way outcome of the boundary classifier.
type Classification string

const (
	// ClassContinue means the new message continues the current topic.
	ClassContinue Classification = "CONTINUE"

	// ClassNew means the new message starts a new topic.
	ClassNew Classification = "NEW"
)

// ClassifyRequest carries the context the classifier sees: the summary
// of the conversation so far, the last agent message, the new human
// message, and how many hours passed in between.
type ClassifyRequest struct {
	Summary     string
	LastMessage string
	NewMessage  string
	DelayHours  int
}

// Classifier is the lightweight classification call deciding between
// CONTINUE and NEW.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
}

// LongGapHours is the silence threshold after which a new message is
// unconditionally treated as a new conversation, without a classifier
// call.
const LongGapHours = 6

// Detector decides whether an incoming message starts a new
// conversation topic or continues the existing one.
type Detector struct {
	classifier Classifier

	// clock is the time source for gap measurement. Overridable in
	// tests.
	clock func() time.Time
}

// NewDetector creates a boundary detector.
func NewDetector(classifier Classifier) *Detector {
	return &Detector{classifier: classifier, clock: time.Now}
}

// IsNewConversation reports whether newMessage starts a new topic
// relative to the buffer's current state.
//
// With fewer than two stored turns there is nothing to compare against
// and the answer is false. A gap of more than LongGapHours since the
// most recent stored turn is a new conversation unconditionally;
// otherwise the classifier decides from the prior-conversation summary,
// the last agent message, the new message and the elapsed hours.
func (d *Detector) IsNewConversation(ctx context.Context, buf *Buffer, newMessage string) (bool, error) {
	if buf.TurnCount() < 2 {
		return false, nil
	}
	last, _ := buf.LastExchange()

	delay := roundHours(d.clock().Sub(last.Agent.Timestamp))
	if delay > LongGapHours {
		return true, nil
	}

	summary, err := buf.SummaryWithoutLast(ctx)
	if err != nil {
		return false, err
	}
	return d.classify(ctx, ClassifyRequest{
		Summary:     summary,
		LastMessage: last.Agent.Content,
		NewMessage:  newMessage,
		DelayHours:  delay,
	})
}

// IsNewTopicPair reports whether the already-stored last exchange
// opened a new topic relative to the agent message that preceded it.
// This is the post-turn variant used by the compressor: the gap is
// measured between prev and the exchange's human turn, not against the
// wall clock.
func (d *Detector) IsNewTopicPair(ctx context.Context, summary string, prev Turn, last Exchange) (bool, error) {
	delay := roundHours(last.User.Timestamp.Sub(prev.Timestamp))
	if delay > LongGapHours {
		return true, nil
	}
	return d.classify(ctx, ClassifyRequest{
		Summary:     summary,
		LastMessage: prev.Content,
		NewMessage:  last.User.Content,
		DelayHours:  delay,
	})
}

func (d *Detector) classify(ctx context.Context, req ClassifyRequest) (bool, error) {
	class, err := d.classifier.Classify(ctx, req)
	if err != nil {
		return false, err
	}
	return class == ClassNew, nil
}

// roundHours converts a duration to the nearest whole hour.
func roundHours(dur time.Duration) int {
	return int(math.Round(dur.Hours()))
}
