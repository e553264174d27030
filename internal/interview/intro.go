package interview

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrIntroSeparator is returned when the introduction has no " from ".
	ErrIntroSeparator = errors.New("introduction has no name/company separator")
	// ErrIntroIncomplete is returned when the name or the company is empty.
	ErrIntroIncomplete = errors.New("introduction is missing a name or a company")
)

var (
	introSeparator = regexp.MustCompile(`(?i) from `)
	introPrefixes  = []*regexp.Regexp{
		regexp.MustCompile(`^(?i:i am)(?:\s+|$)`),
		regexp.MustCompile(`^(?i:my name is)(?:\s+|$)`),
	}
)

// ParseIntroduction splits "I am <name> from <company>" into its parts.
//
// The first case-insensitive " from " separates the name from the company, so
// a name containing " from " cannot be expressed. Leading "I am" and
// "My name is" are dropped from the name. Both parts must be non-empty after
// trimming.
func ParseIntroduction(text string) (name, company string, err error) {
	text = strings.TrimSpace(norm.NFC.String(text))

	loc := introSeparator.FindStringIndex(text)
	if loc == nil {
		return "", "", ErrIntroSeparator
	}

	name = text[:loc[0]]
	for _, prefix := range introPrefixes {
		name = prefix.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(name)
	company = strings.TrimSpace(text[loc[1]:])

	if name == "" || company == "" {
		return "", "", ErrIntroIncomplete
	}

	return name, company, nil
}
