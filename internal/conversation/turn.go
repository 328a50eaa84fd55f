// Package conversation manages the dialogue state shared with a model
// backend: an append-ordered turn history with bounded eviction, and a
// gateway that exchanges that history for model replies in blocking or
// streaming mode.
package conversation

// Role tags a turn with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the dialogue. Turns are immutable once created;
// ordering within a History is dialogue chronology.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// User builds a user turn.
func User(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}
