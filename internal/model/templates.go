package model

// PromptTemplates are the canned openings offered next to the message input.
// Picking one only fills the draft.
var PromptTemplates = []string{
	"Explain this concept simply...",
	"Help me write a professional email about...",
	"Code review: Can you check this code for...",
	"Brainstorm ideas for...",
	"Summarize the key points of...",
	"What are the pros and cons of...",
}

// TemplatesResponse lists the prompt templates.
type TemplatesResponse struct {
	Templates []string `json:"templates"`
}
