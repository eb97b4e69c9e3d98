// Package utils holds small helpers shared across modules.
package utils

import "strings"

// ParseList reads a list-valued query parameter such as
// ?status=pending,under_review. Entries are trimmed, blanks are dropped and
// repeats are collapsed case-insensitively, keeping the first spelling.
// Returns nil when nothing is left.
func ParseList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key := strings.ToLower(field)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, field)
	}
	return out
}
