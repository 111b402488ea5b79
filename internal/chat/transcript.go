package chat

import "sync"

// Sender labels who produced a transcript entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

// Message is a single chat turn.
type Message struct {
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
}

// Transcript is the ordered, session-local sequence of chat turns. Entries
// are append-only; a streaming send repeatedly rewrites the content of its
// own assistant entry while the accumulation grows.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message and returns its index.
func (t *Transcript) Append(message Message) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, message)
	return len(t.messages) - 1
}

// Replace rewrites the content of the entry at index. Out-of-range indexes
// are ignored.
func (t *Transcript) Replace(index int, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.messages) {
		return
	}
	t.messages[index].Content = content
}

// Messages returns a snapshot copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make([]Message, len(t.messages))
	copy(snapshot, t.messages)
	return snapshot
}

// Len reports the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset clears the transcript, as happens whenever the active view changes.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
