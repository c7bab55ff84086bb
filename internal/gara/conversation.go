package gara

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of a tender's conversation log.
type ChatMessage struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Text: text, CreatedAt: now().UTC()}
}

// Recent returns at most the last n messages.
func Recent(messages []ChatMessage, n int) []ChatMessage {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

// SetOverviewStatus sets overview.status and re-normalizes.
func SetOverviewStatus(tenderID string, state State, status string) State {
	base := Normalize(tenderID, state)
	overview := base.copySection(SectionOverview)
	overview["status"] = status
	return Normalize(tenderID, base.with(SectionOverview, overview))
}
