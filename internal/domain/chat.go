package domain

// ChatMessage is the provider-agnostic chat message shape passed to the
// free-text generators.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
