package model

import "time"

// Card is a single repository-rating submission.
//
// Cards are written once and never changed. UserID is nil when the poster
// was not signed in. Anonymous only affects how the feed displays the card:
// a signed-in user who asked for anonymity still has UserID set.
//
// User is the resolved reference. Stores fill it on reads that list the
// feed; it is never persisted on the card itself.
type Card struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	UserID    *string   `json:"userId,omitempty"`
	User      *User     `json:"-"`
	Comment   string    `json:"comment"`
	Rating    int       `json:"rating"`
	Anonymous bool      `json:"anonymous"`
	PostedAt  time.Time `json:"postedAt"`
}
