// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a person who signed in with GitHub.
//
// ExternalID is the GitHub account id as a string. It is unique and never
// changes once the record exists; ID is our own xid so card references don't
// depend on a third-party numbering scheme.
//
// Blocked and BlockReason are set by the submission pipeline when a user
// posts blacklisted content. Nothing in the service ever clears them.
type User struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"externalId"`
	Name        string    `json:"name"`
	Handle      string    `json:"handle"`                // GitHub login, e.g. "octocat"
	Image       string    `json:"image"`                 // avatar URL
	Blocked     bool      `json:"blocked"`
	BlockReason string    `json:"blockReason,omitempty"` // only set when Blocked
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Session is the identity handed over by the sign-in flow.
// A nil *Session means an unauthenticated visitor.
type Session struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
	Handle     string `json:"handle"`
	Image      string `json:"image"`
}

// UserFromSession builds the profile fields a session carries.
// ID and timestamps are left for the store to assign.
func UserFromSession(s *Session) *User {
	return &User{
		ExternalID: s.ExternalID,
		Name:       s.Name,
		Handle:     s.Handle,
		Image:      s.Image,
	}
}
