package session

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser is a message sent to the agent.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the agent.
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content string
}

// Transcript is the ordered conversation history of a session. It is
// owned by the session; callers get copies, never the backing slice.
type Transcript struct {
	msgs []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(role Role, content string) {
	t.msgs = append(t.msgs, Message{Role: role, Content: content})
}

// Messages returns a copy of the transcript's messages in order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// SetMessages replaces the transcript's contents. Used by compaction
// strategies after they have computed the pruned conversation.
func (t *Transcript) SetMessages(msgs []Message) {
	t.msgs = make([]Message, len(msgs))
	copy(t.msgs, msgs)
}

// RemoveLast drops the most recent message. Used to unwind a prompt
// whose call failed so a retry does not duplicate it.
func (t *Transcript) RemoveLast() {
	if len(t.msgs) > 0 {
		t.msgs = t.msgs[:len(t.msgs)-1]
	}
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// EstimatedTokens approximates the token volume of the transcript using
// the ~4 characters per token heuristic. Exact counts come from the
// backend's usage report once a call has been made; this estimate covers
// unsent and freshly compacted transcripts.
func (t *Transcript) EstimatedTokens() int {
	chars := 0
	for _, m := range t.msgs {
		chars += len(m.Content)
	}
	return chars / 4
}

// Clone returns an independent copy of the transcript.
func (t *Transcript) Clone() *Transcript {
	c := &Transcript{}
	c.SetMessages(t.msgs)
	return c
}
