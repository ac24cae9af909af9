package transport

import "evalchat/internal/history"

// chatRequest is the OpenAI-compatible chat completions request body.
type chatRequest struct {
	Model    string            `json:"model"`
	Messages []history.Message `json:"messages"`
	Stream   bool              `json:"stream"`
}

// Chunk is one decoded streaming frame. Increments live at
// choices[0].delta.content; frames without that path carry no increment.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is an in-stream error frame from the provider.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
