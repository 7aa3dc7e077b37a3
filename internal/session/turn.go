package session

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Conversation is the in-memory, append-only history of the active session.
// It is not safe for concurrent use; callers serialise access per session.
type Conversation struct {
	turns []Turn
}

// NewConversation starts a conversation from previously stored turns.
func NewConversation(turns []Turn) *Conversation {
	return &Conversation{turns: append([]Turn(nil), turns...)}
}

// Append adds a turn at the end of the history.
func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

func (c *Conversation) Len() int { return len(c.turns) }

// NewID returns a short random session token.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// TitleMaxLength bounds derived session titles, in characters.
const TitleMaxLength = 30

// DeriveTitle builds a title from the first user turn.
func DeriveTitle(history []Turn) string {
	for _, t := range history {
		if t.Role != RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(t.Content), " ")
		r := []rune(title)
		if len(r) > TitleMaxLength {
			return string(r[:TitleMaxLength]) + "..."
		}
		return title
	}
	return ""
}

// Paired reports whether every user turn is followed by an assistant turn.
func Paired(history []Turn) bool {
	if len(history)%2 != 0 {
		return false
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != RoleUser || history[i+1].Role != RoleAssistant {
			return false
		}
	}
	return true
}
