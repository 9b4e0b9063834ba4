// Package models holds the value types shared by the session controllers,
// the backend client and the presentation surfaces.
package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a cited passage attached to an assistant answer.
type Source struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Filename   string  `json:"filename"`
}

// UnmarshalJSON accepts both the object form and a bare string, which some
// backends return for sources that carry no score or filename.
func (s *Source) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Source{Text: text}
		return nil
	}

	type plain Source
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Source(p)
	return nil
}

// MatchPercent returns the similarity as a rounded percentage.
func (s Source) MatchPercent() int {
	return int(math.Round(s.Similarity * 100))
}

// Message is one turn of a conversation. Sources is non-nil only on
// assistant messages built from a successful query.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content, nil)
}

// NewAssistantMessage creates an assistant turn carrying an answer and its
// sources. A nil sources slice is normalized to an empty one so that
// successful answers are distinguishable from synthesized errors.
func NewAssistantMessage(content string, sources []Source) Message {
	if sources == nil {
		sources = []Source{}
	}
	return newMessage(RoleAssistant, content, sources)
}

// NewAssistantNotice creates an assistant turn without sources, used for the
// welcome text and for failed queries.
func NewAssistantNotice(content string) Message {
	return newMessage(RoleAssistant, content, nil)
}

func newMessage(role Role, content string, sources []Source) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now(),
	}
}

// HasSources reports whether the message carries a source list.
func (m Message) HasSources() bool {
	return m.Sources != nil
}

// clone copies the source slice so callers cannot alias transcript storage.
func (m Message) clone() Message {
	if m.Sources != nil {
		m.Sources = append([]Source{}, m.Sources...)
	}
	return m
}
