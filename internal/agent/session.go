package agent

import (
	"github.com/google/uuid"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
)

// SessionState is the explicit per-invocation context threaded through the
// loop: the request, the running iteration counter, and every sealed step.
// Nothing here is shared between sessions, so concurrent invocations for
// different chats can never leak state into each other.
type SessionState struct {
	DocumentID uuid.UUID
	UserID     uuid.UUID
	ChatID     *uuid.UUID

	UserMessage string
	Mode        string

	// Optional focus range of the request, 1-based inclusive lines.
	FocusStart *int
	FocusEnd   *int

	Iteration int
	Steps     []types.AgentStep
}

func (s *SessionState) chatID() *uuid.UUID {
	if s == nil {
		return nil
	}
	return s.ChatID
}
