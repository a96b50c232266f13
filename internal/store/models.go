package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn half inside a conversation. Once appended it is never
// mutated or removed.
type Message struct {
	ID        string    `json:"id"` // UUID
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Assistant messages only.
	Duration float64 `json:"duration,omitempty"` // generation wall-clock, seconds
	Model    string  `json:"model,omitempty"`    // model that produced the content

	// True on a user message resubmitted automatically after a failed turn,
	// and on the assistant message answering such a turn.
	IsAutoErrorResolution bool `json:"is_auto_error_resolution,omitempty"`
}

// Conversation is the durable record for one chat. It is persisted as a
// single JSON blob keyed by ID; the ID itself lives in the row key, not in
// the blob.
type Conversation struct {
	ID         string    `json:"-"`
	Title      *string   `json:"title"` // Nullable
	FileName   string    `json:"file_name,omitempty"`
	CSVHeaders []string  `json:"csv_headers,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationSummary is the listing view: everything but the messages.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        *string   `json:"title"`
	FileName     string    `json:"file_name,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// FallbackMetadata seeds a conversation that is created implicitly by an
// append to an unknown id.
type FallbackMetadata struct {
	FileName   string
	CSVHeaders []string
}
