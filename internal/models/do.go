package models

import (
	"strings"
	"time"
)

// Do is one of a user's daily intentions.
type Do struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"` // nil when blank
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DescriptionText returns the description or an empty string.
func (d Do) DescriptionText() string {
	if d.Description == nil {
		return ""
	}
	return *d.Description
}

// OptionalText trims s and returns nil when nothing is left.
func OptionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
