package stores

import "strings"

// Criteria selects the big-store chains inside one region.
type Criteria struct {
	Region           string
	AllowPrefixes    []string
	ExcludeSubstring string
}

// Match reports whether r is kept by c. County comparison is exact; the DBA
// name must start with one of the allowed prefixes and must not contain the
// exclusion substring. An empty exclusion excludes nothing.
func (c Criteria) Match(r Record) bool {
	if r.County != c.Region {
		return false
	}
	if c.ExcludeSubstring != "" && strings.Contains(r.DBAName, c.ExcludeSubstring) {
		return false
	}
	for _, p := range c.AllowPrefixes {
		if strings.HasPrefix(r.DBAName, p) {
			return true
		}
	}
	return false
}

// Filter returns the records matching c in input order.
func Filter(records []Record, c Criteria) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// DropMissingGeoreference removes records whose georeference is blank and
// reports how many were dropped.
func DropMissingGeoreference(records []Record) ([]Record, int) {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Georeference) == "" {
			continue
		}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
