package model

// Blacklist categories a moderator can pick for an entry.
const (
	CategoryProfanity = "profanity"
	CategorySpam      = "spam"
	CategoryHate      = "hate"
	CategoryOther     = "other"
)

// BlacklistEntry is one disallowed word or phrase.
type BlacklistEntry struct {
	Word     string `json:"word"     mapstructure:"word"`
	Category string `json:"category" mapstructure:"category"`
	Notes    string `json:"notes"    mapstructure:"notes"`
}

// Blacklist is the singleton moderation list. Order is the order moderators
// entered the words in; matching does not depend on it.
type Blacklist struct {
	Words []BlacklistEntry `json:"words"`
}
