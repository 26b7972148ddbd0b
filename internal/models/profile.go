package models

import "time"

// Profile holds per-user settings. Its ID equals the user's ID.
type Profile struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Birthday             *string   `json:"birthday,omitempty"`                // YYYY-MM-DD format
	SelectedMessageSetID *string   `json:"selected_message_set_id,omitempty"` // nil means the default set
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// MessageSet is a named collection of praise messages.
type MessageSet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PraiseMessage is one line shown when a Do is achieved.
type PraiseMessage struct {
	ID        string    `json:"id"`
	SetID     string    `json:"set_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
