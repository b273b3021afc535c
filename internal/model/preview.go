package model

// Preview is the link-preview metadata scraped from a page.
// Description and Image are empty when the page doesn't declare them.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Favicon     string `json:"favicon"`
}
