package memory

import "context"

// CompressResult describes a segment promotion decided by the
// compressor. The orchestrator applies it promote-first: add the
// segment to the long-term index and update the profile before the
// buffer is reseeded, so a crash in between never loses the segment.
type CompressResult struct {
	// Segment is the summary of the closed conversation segment to
	// append to the long-term index.
	Segment string

	// Discarded is the transcript of everything being evicted from the
	// short-term window, the input for the profile update.
	Discarded string

	// LastExchange is the just-started topic the buffer is re-seeded
	// with after promotion.
	LastExchange Exchange
}

// Compressor evicts closed topics from the short-term window into
// long-term storage. It runs once per request, after the response has
// been generated and stored.
type Compressor struct {
	detector *Detector
}

// NewCompressor creates a compressor using the given boundary detector.
func NewCompressor(detector *Detector) *Compressor {
	return &Compressor{detector: detector}
}

// Evaluate decides whether the buffer's last exchange started a new
// topic. It returns nil when nothing should be promoted. Evaluate never
// mutates the buffer; applying the result is the caller's job.
//
// With fewer than two stored turns there is nothing to evaluate. With
// nothing before the last exchange there is nothing to evict either,
// so at least two exchanges are required.
func (c *Compressor) Evaluate(ctx context.Context, buf *Buffer) (*CompressResult, error) {
	exchanges := buf.Exchanges()
	if len(exchanges) < 2 {
		return nil, nil
	}

	last := exchanges[len(exchanges)-1]
	prev := exchanges[len(exchanges)-2].Agent

	previousSummary, err := buf.SummaryWithoutLast(ctx)
	if err != nil {
		return nil, err
	}

	isNew, err := c.detector.IsNewTopicPair(ctx, previousSummary, prev, last)
	if err != nil {
		return nil, err
	}
	if !isNew {
		return nil, nil
	}

	discarded := RenderTranscript(buf.Summary(), flattenExchanges(exchanges[:len(exchanges)-1]))
	return &CompressResult{
		Segment:      previousSummary,
		Discarded:    discarded,
		LastExchange: last,
	}, nil
}
