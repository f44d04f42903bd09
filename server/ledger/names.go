package ledger

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// NormalizeName lowercases and trims a player or game name and rejects
// anything that is not letters, digits or underscores. Names become file
// names, so this also keeps path separators out.
func NormalizeName(kind, name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", New(CodeInvalidName, kind+" name is required")
	}
	if !nameRe.MatchString(n) {
		return "", New(CodeInvalidName, fmt.Sprintf("%s name %q can only contain letters, numbers, and underscores", kind, name))
	}
	return n, nil
}

var scopeRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ParseScope maps "" and "default" to the default pool; anything else must
// be a valid team name.
func ParseScope(s string) (Scope, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" || n == "default" {
		return DefaultScope, nil
	}
	if !scopeRe.MatchString(n) {
		return "", New(CodeInvalidName, fmt.Sprintf("team name %q can only contain letters, numbers, dashes, and underscores", s))
	}
	return Scope(n), nil
}
