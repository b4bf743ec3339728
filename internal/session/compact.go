package session

import (
	"context"
	"fmt"
	"strings"
)

// CompactionStrategy rewrites a transcript to reduce its token volume.
// The trigger (when to compact) and the pass/fail outcome belong to the
// context governor and the session; strategies only decide how history
// is condensed. A strategy error is treated as unrecoverable by the
// loop, since silently continuing guarantees a failed call later.
type CompactionStrategy interface {
	Compact(ctx context.Context, t *Transcript) error
}

// DefaultKeepPairs is how many recent user/assistant exchange pairs a
// strategy preserves verbatim.
const DefaultKeepPairs = 4

// SlidingWindow drops the middle of the conversation, keeping the
// opening exchange (the task statement and the agent's first reply) and
// the most recent KeepPairs exchanges. The oldest surviving user turn
// is prefixed with a bridge note so the agent knows history was pruned.
type SlidingWindow struct {
	// KeepPairs is the number of trailing exchange pairs to preserve.
	// Zero means DefaultKeepPairs.
	KeepPairs int
}

func (s SlidingWindow) Compact(_ context.Context, t *Transcript) error {
	keep := s.KeepPairs
	if keep <= 0 {
		keep = DefaultKeepPairs
	}

	head, tail, dropped := splitForCompaction(t.Messages(), keep)
	if len(dropped) == 0 {
		return nil
	}

	bridge := fmt.Sprintf("[%d earlier messages pruned to fit the context window. The task statement above is unchanged.]", len(dropped))
	tail[0].Content = bridge + "\n\n" + tail[0].Content
	t.SetMessages(append(head, tail...))
	return nil
}

// SummarizeFunc condenses a span of conversation into a short summary.
// The session supplies an implementation backed by its own model; the
// call's cost accrues to the session's running total.
type SummarizeFunc func(ctx context.Context, conversation string) (string, error)

// Summarizer condenses the dropped middle of the conversation into a
// summary carried forward in place of the pruned turns. Falls back to
// plain pruning when no summarize function is configured.
type Summarizer struct {
	// Summarize produces the condensed summary of the dropped turns.
	Summarize SummarizeFunc
	// KeepPairs is the number of trailing exchange pairs to preserve.
	// Zero means DefaultKeepPairs.
	KeepPairs int
}

func (s Summarizer) Compact(ctx context.Context, t *Transcript) error {
	keep := s.KeepPairs
	if keep <= 0 {
		keep = DefaultKeepPairs
	}

	head, tail, dropped := splitForCompaction(t.Messages(), keep)
	if len(dropped) == 0 {
		return nil
	}

	if s.Summarize == nil {
		return SlidingWindow{KeepPairs: keep}.Compact(ctx, t)
	}

	var b strings.Builder
	for _, m := range dropped {
		switch m.Role {
		case RoleUser:
			b.WriteString("User: ")
		case RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}

	summary, err := s.Summarize(ctx, b.String())
	if err != nil {
		return fmt.Errorf("summarize dropped history: %w", err)
	}

	bridge := fmt.Sprintf("[%d earlier messages summarized]\n%s", len(dropped), summary)
	tail[0].Content = bridge + "\n\n" + tail[0].Content
	t.SetMessages(append(head, tail...))
	return nil
}

// splitForCompaction divides msgs into the opening exchange, the kept
// tail, and the dropped middle. The tail is aligned to start on a user
// turn so the rewritten transcript keeps strict user/assistant
// alternation. Returns an empty dropped slice when the conversation is
// too short to prune.
func splitForCompaction(msgs []Message, keepPairs int) (head, tail, dropped []Message) {
	// Opening exchange: first user turn plus the first reply if present.
	headLen := 1
	if len(msgs) > 1 {
		headLen = 2
	}

	tailStart := len(msgs) - keepPairs*2
	if tailStart < headLen {
		return msgs, nil, nil
	}
	// Align to a user turn.
	if msgs[tailStart].Role != RoleUser && tailStart+1 < len(msgs) {
		tailStart++
	}
	if tailStart <= headLen {
		return msgs, nil, nil
	}

	head = make([]Message, headLen)
	copy(head, msgs[:headLen])
	tail = make([]Message, len(msgs)-tailStart)
	copy(tail, msgs[tailStart:])
	dropped = msgs[headLen:tailStart]
	return head, tail, dropped
}
