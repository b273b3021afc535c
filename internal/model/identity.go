package model

import "strings"

// Sentinel values shown in place of a real identity.
const (
	AnonymousName   = "Anonymous"
	AnonymousHandle = "anonymous"
	AnonymousImage  = "https://github.com/ghost.png"
)

// Identity is how the feed displays the author of a card. It is either the
// author's real profile or the anonymous sentinel (Anonymous == true), and
// is computed once per card by ResolveIdentity.
type Identity struct {
	Anonymous bool   `json:"anonymous"`
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	Image     string `json:"image"`
}

// AnonymousIdentity returns the sentinel identity.
func AnonymousIdentity() Identity {
	return Identity{
		Anonymous: true,
		Name:      AnonymousName,
		Handle:    AnonymousHandle,
		Image:     AnonymousImage,
	}
}

// ResolveIdentity decides which identity a card is displayed with.
//
// The sentinel wins when the card was posted anonymously, when it has no
// resolved user, or when the user's handle or name is literally "anonymous"
// in any case. The stored user reference is left untouched either way.
func ResolveIdentity(c *Card) Identity {
	u := c.User
	if c.Anonymous || u == nil {
		return AnonymousIdentity()
	}
	if strings.EqualFold(u.Handle, AnonymousHandle) || strings.EqualFold(u.Name, AnonymousHandle) {
		return AnonymousIdentity()
	}
	return Identity{
		Name:   u.Name,
		Handle: u.Handle,
		Image:  u.Image,
	}
}
