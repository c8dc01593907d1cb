package oracle

import "strings"

// MaxRelated caps the number of related rsids taken from one reply.
const MaxRelated = 15

// ParseRelated reads the JSON array of rsids in reply. Entries are
// lower-cased and must start with "rs"; self, duplicates and non-strings
// are dropped. ok is false when the reply holds no array at all.
func ParseRelated(reply, self string) (ids []string, ok bool) {
	var raw []any
	if err := ExtractJSONArray(reply, &raw); err != nil {
		return nil, false
	}
	return CleanRSIDs(raw, self), true
}

// CleanRSIDs normalizes a decoded list of rsids the way ParseRelated does.
func CleanRSIDs(raw []any, self string) []string {
	self = strings.ToLower(strings.TrimSpace(self))
	seen := map[string]bool{}
	var out []string
	for _, v := range raw {
		s, isString := v.(string)
		if !isString {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(s))
		if !strings.HasPrefix(id, "rs") || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == MaxRelated {
			break
		}
	}
	return out
}
