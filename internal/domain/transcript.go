package domain

import "time"

// Transcript is one logged exchange between a visitor and the assistant
type Transcript struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateTranscriptRequest is the request to log an exchange
type CreateTranscriptRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	UserMessage string `json:"user_message" binding:"required"`
	BotResponse string `json:"bot_response" binding:"required"`
}

// TranscriptStats represents transcript statistics
type TranscriptStats struct {
	Total int `json:"total"`
}
