package models

import (
	"strings"
	"time"
)

type Client struct {
	ID              string     `json:"id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	LastAppointment *time.Time `json:"lastAppointment,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (c *Client) SetID(id string) { c.ID = id }

// Matches reports whether query is a case-insensitive substring of the name or email.
// An empty query matches every client.
func (c *Client) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Email), q)
}
