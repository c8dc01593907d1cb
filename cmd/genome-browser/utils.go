package main

import (
	"fmt"

	"github.com/v64/genome-browser/internal/genome"
)

// validatePositiveInt returns a usage error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return usagef("%s must be positive, got %d", name, n)
	}
	return nil
}

// normalizeRSIDs lower-cases ids and drops blanks and duplicates
func normalizeRSIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = genome.NormalizeRSID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// redact hides all but the last four characters of a secret
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return fmt.Sprintf("****%s", secret[len(secret)-4:])
}
