package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Order is a confirmed booking written by a domain handler.
type Order struct {
	ID           string    `json:"id"`
	Confirmation string    `json:"confirmation"`
	Domain       string    `json:"domain"`
	Summary      string    `json:"summary"`
	PayloadJSON  string    `json:"payload_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// TurnRecord is one conversation turn copied into the memory log.
type TurnRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Role           string    `json:"role"`
	Text           string    `json:"text"`
	AttachmentJSON string    `json:"attachment_json,omitempty"` // empty when the turn has no attachment
	CreatedAt      time.Time `json:"created_at"`
}
