package config

import (
	"strings"

	"golang.org/x/text/language"
)

// normalize trims whitespace and canonicalizes enumerated fields.
func (c *Config) normalize() {
	c.Book.ID = strings.TrimSpace(c.Book.ID)
	c.Book.Title = strings.TrimSpace(c.Book.Title)
	c.Book.Author = strings.TrimSpace(c.Book.Author)
	c.Book.Topic = strings.TrimSpace(c.Book.Topic)
	c.Book.Genre = strings.ToLower(strings.TrimSpace(c.Book.Genre))
	c.Book.TextBackend = strings.ToLower(strings.TrimSpace(c.Book.TextBackend))
	c.Book.ImageBackend = strings.ToLower(strings.TrimSpace(c.Book.ImageBackend))
	c.Book.Outline = strings.TrimSpace(c.Book.Outline)
	c.Book.Cover.Style = strings.TrimSpace(c.Book.Cover.Style)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)

	// "sd" is accepted as shorthand for the full tag.
	if c.Book.ImageBackend == "sd" {
		c.Book.ImageBackend = "stable_diffusion"
	}

	if tag, err := language.Parse(strings.TrimSpace(c.Book.Language)); err == nil {
		c.Book.Language = tag.String()
	} else {
		c.Book.Language = strings.ToLower(strings.TrimSpace(c.Book.Language))
	}
}

// LanguageName returns the English display name of the configured target
// language, falling back to the raw tag when it cannot be parsed.
func (c *Config) LanguageName() string {
	tag, err := language.Parse(c.Book.Language)
	if err != nil {
		return c.Book.Language
	}
	if name := languageDisplayName(tag); name != "" {
		return name
	}
	return c.Book.Language
}

// The x/text display catalog is large; the prompt text only ever needs a
// small set of names, so unknown tags fall back to the tag itself.
var languageNames = map[string]string{
	"en": "English",
	"ko": "Korean",
	"ja": "Japanese",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"zh": "Chinese",
	"pt": "Portuguese",
	"it": "Italian",
}

func languageDisplayName(tag language.Tag) string {
	base, _ := tag.Base()
	return languageNames[base.String()]
}
