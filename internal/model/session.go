package model

// SessionState is the send-cycle state of a chat session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateSending    SessionState = "sending"
	StateGenerating SessionState = "generating"
)

// SessionSnapshot is a consistent read of a session.
type SessionSnapshot struct {
	User                 Identity     `json:"user"`
	ActiveConversationID string       `json:"active_conversation_id,omitempty"`
	Messages             []Message    `json:"messages"`
	IsGenerating         bool         `json:"is_generating"`
	State                SessionState `json:"state"`
	ConversationCount    int          `json:"conversation_count"`
	Capabilities         Capabilities `json:"capabilities"`
}

// Capabilities reports which optional platform features are present.
type Capabilities struct {
	SpeechInput  bool `json:"speech_input"`
	SpeechOutput bool `json:"speech_output"`
	Export       bool `json:"export"`
}
