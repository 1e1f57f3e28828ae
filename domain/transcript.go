package domain

import "sync"

// Transcript is the ordered, append-only message list of one session.
// Readers always receive copies.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func NewTranscript() *Transcript {
	return &Transcript{messages: make([]Message, 0, 16)}
}

// Append stores msg at the end of the transcript and returns it with its
// sequence number filled in.
func (t *Transcript) Append(msg Message) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg.Seq = len(t.messages)
	t.messages = append(t.messages, msg)
	return msg
}

func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]Message, len(t.messages))
	copy(copied, t.messages)
	return copied
}

// At returns the message with the given sequence number.
func (t *Transcript) At(seq int) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if seq < 0 || seq >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[seq], true
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
