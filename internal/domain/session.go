// Package domain contains core domain types for the IdeaScope discovery service.
package domain

import (
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionStatus is the lifecycle state of a discovery session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusSkipped   SessionStatus = "skipped"
)

// Message is one turn in the discovery transcript. The transcript is
// append-only and its insertion order is the literal conversation order
// sent to the model.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DiscoverySession is the aggregate tracking one discovery conversation:
// its transcript, current phase, and (once synthesis succeeds) the
// structured outputs consumed by downstream research.
type DiscoverySession struct {
	ID            string            `json:"id"`
	IdeaID        string            `json:"idea_id,omitempty"`
	OwnerID       string            `json:"owner_id"`
	Messages      []Message         `json:"messages"`
	CurrentPhase  Phase             `json:"current_phase"`
	TLDR          *SynthesisSummary `json:"tldr,omitempty"`
	FounderFit    *FounderFit       `json:"founder_fit,omitempty"`
	RefinedPrompt *ResearchPrompt   `json:"refined_prompt,omitempty"`
	Status        SessionStatus     `json:"status"`
	Version       int64             `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// IsActive reports whether the session still accepts conversation turns.
func (s *DiscoverySession) IsActive() bool {
	return s.Status == StatusActive
}

// Append adds a message to the transcript.
func (s *DiscoverySession) Append(role Role, content string, at time.Time) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
}

// LastAssistantMessage returns the content of the most recent assistant turn,
// or the empty string if the assistant has not spoken yet.
func (s *DiscoverySession) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}
