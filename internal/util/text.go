package util

import (
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// IsValidUsername reports whether name is 3-30 letters, digits or underscores
func IsValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// ExtractMentions extracts @username mentions from text content.
// Returns unique lowercase usernames without the @ symbol.
func ExtractMentions(content string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "@") || len(word) < 2 {
			continue
		}
		username := strings.TrimRight(strings.TrimPrefix(word, "@"), ".,!?;:)'\"")
		username = strings.ToLower(username)

		if !seen[username] && IsValidUsername(username) {
			seen[username] = true
			mentions = append(mentions, username)
		}
	}
	return mentions
}

// NormalizeTags trims, lowercases and dedupes tags, keeping input order.
// Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Truncate shortens s to at most n runes, adding an ellipsis when cut
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
