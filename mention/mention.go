// Package mention extracts @name tokens from message text. Parsing is pure:
// the same input always yields the same ordered mention list. Whether a
// mention routes anywhere is decided elsewhere, against a world's roster.
package mention

import (
	"strings"
	"unicode"
)

// Mention is a single @name token found in a message.
type Mention struct {
	// Name is the token text after the @, original casing preserved.
	Name string
	// ParagraphStart reports whether the mention is the first non-whitespace
	// content of the message or of a line. Only such mentions are eligible
	// for routing.
	ParagraphStart bool
}

func isNameRune(r rune) bool {
	return r == '-' || r == '_' ||
		unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Parse scans text for well-formed @name tokens in order of appearance.
// Malformed tokens (bare @, @@name) are skipped entirely.
func Parse(text string) []Mention {
	var out []Mention
	runes := []rune(text)

	// seenInk tracks whether non-whitespace content appeared on the current line
	seenInk := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			seenInk = false
			continue
		}
		if r != '@' {
			if !unicode.IsSpace(r) {
				seenInk = true
			}
			continue
		}

		atStart := !seenInk
		seenInk = true

		// @@name is malformed, swallow the whole run of @s
		if i+1 < len(runes) && runes[i+1] == '@' {
			for i+1 < len(runes) && (runes[i+1] == '@' || isNameRune(runes[i+1])) {
				i++
			}
			continue
		}

		j := i + 1
		for j < len(runes) && isNameRune(runes[j]) {
			j++
		}
		if j == i+1 { // bare @
			continue
		}

		out = append(out, Mention{
			Name:           string(runes[i+1 : j]),
			ParagraphStart: atStart,
		})
		i = j - 1
	}
	return out
}

// FirstValid returns the name of the first routable mention in text: the
// first paragraph-initial mention whose name is known and is not the excluded
// name (case-insensitive). The returned name is the known roster spelling as
// written in the text.
func FirstValid(text string, known func(string) bool, exclude string) (string, bool) {
	for _, m := range Parse(text) {
		if !m.ParagraphStart {
			continue
		}
		if exclude != "" && strings.EqualFold(m.Name, exclude) {
			continue
		}
		if known(m.Name) {
			return m.Name, true
		}
	}
	return "", false
}

// Leading returns the mention that opens text, when the first non-whitespace
// content is a well-formed @name token.
func Leading(text string) (string, bool) {
	ms := Parse(text)
	if len(ms) == 0 || !ms[0].ParagraphStart {
		return "", false
	}
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	if strings.HasPrefix(trimmed, "@"+ms[0].Name) {
		return ms[0].Name, true
	}
	return "", false
}

// LeadsWith reports whether the first non-whitespace content of text is an
// @name mention for the given name (case-insensitive).
func LeadsWith(text, name string) bool {
	lead, ok := Leading(text)
	return ok && strings.EqualFold(lead, name)
}

// StripLeading removes every leading @name mention for the given name,
// together with the whitespace that follows it. Used to drop self-mentions an
// agent produced at the head of its own reply.
func StripLeading(text, name string) string {
	for LeadsWith(text, name) {
		trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
		trimmed = trimmed[len(name)+1:]
		text = strings.TrimLeftFunc(trimmed, unicode.IsSpace)
	}
	return text
}
