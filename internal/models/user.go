package models

import "github.com/google/uuid"

// UserContext is the authenticated identity attached to a request. The
// core trusts it and scopes every storage operation by UserID.
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}
