package api

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single entry in a conversation. Ordering is significant:
// the engine preserves message order exactly as committed.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemText returns the newline-joined content of every system-role
// message in msgs, preserving original order. Returns the empty string
// when no system messages are present.
func SystemText(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// LastSystem returns the most recent system message, or nil.
func LastSystem(msgs []Message) *Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleSystem {
			return &msgs[i]
		}
	}
	return nil
}
