// Package ident extracts build identifiers from version-control log text.
package ident

import (
	"regexp"
	"strings"
)

// Identifier is an opaque token naming one buildable revision snapshot.
// The zero value means "no identifier found".
type Identifier string

// grammars are the recognized identifier forms, tried in order. The
// tagged-snapshot form wins over the plain semantic-version form.
var grammars = []*regexp.Regexp{
	regexp.MustCompile(`ESMF_\S*`),
	regexp.MustCompile(`v\S*\.\S*\.\S*`),
}

// Grammars returns the identifier patterns in match priority order.
func Grammars() []string {
	patterns := make([]string, 0, len(grammars))
	for _, g := range grammars {
		patterns = append(patterns, g.String())
	}

	return patterns
}

// Extract returns the first identifier found in value, trying each grammar
// in priority order. Lines without a match yield the empty Identifier; this
// is not an error condition.
func Extract(value string) Identifier {
	for _, g := range grammars {
		if match := g.FindString(value); match != "" {
			return Identifier(match)
		}
	}

	return ""
}

// String returns the identifier token.
func (id Identifier) String() string {
	return string(id)
}

// GitSuffix returns the abbreviated commit hash trailing the identifier,
// e.g. "60a38ef" for "ESMF_8_3_0_beta_snapshot_04-8-g60a38ef".
func (id Identifier) GitSuffix() string {
	parts := strings.Split(string(id), "-")

	last := parts[len(parts)-1]
	if len(last) < 2 {
		return ""
	}

	return last[1:]
}

// SanitizeBranch replaces the path separators a branch name may carry with
// underscores, matching how branch names are embedded in commit messages
// and artifact paths.
func SanitizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "_")
}

// ParseRecent scans raw multi-line log text for the most recent unique
// identifiers mentioning both branch and machine, most-recent-first.
// Duplicates are removed preserving first-seen order and the result is
// truncated to limit. An empty result means "nothing to process", not an
// error.
//
// Filtering is a conservative substring match on both names; branch names
// that are substrings of one another may over-match.
func ParseRecent(logText, branch, machine string, limit int) []Identifier {
	if limit <= 0 {
		return nil
	}

	sanitized := SanitizeBranch(branch)

	seen := make(map[Identifier]struct{})
	results := make([]Identifier, 0, limit)

	for _, line := range strings.Split(logText, "\n") {
		if !strings.Contains(line, sanitized) || !strings.Contains(line, machine) {
			continue
		}

		id := Extract(line)
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		results = append(results, id)

		if len(results) >= limit {
			break
		}
	}

	return results
}
