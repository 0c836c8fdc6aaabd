// Package report aggregates nearest-store matches into served-group counts,
// validates the one-to-one merge back onto tracts and renders the result.
package report

import (
	"cmp"
	"slices"

	"github.com/sells-group/service-area/internal/layer"
	"github.com/sells-group/service-area/internal/spatial"
)

// Store attribute names used to key served groups.
const (
	AttrName         = "DBA Name"
	AttrStreetNumber = "Street Number"
	AttrStreetName   = "Street Name"
)

// GroupKey identifies one store location.
type GroupKey struct {
	Name         string `yaml:"name"`
	StreetNumber string `yaml:"street_number"`
	StreetName   string `yaml:"street_name"`
}

// Compare orders keys by name, then street number, then street name.
func (k GroupKey) Compare(o GroupKey) int {
	if c := cmp.Compare(k.Name, o.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(k.StreetNumber, o.StreetNumber); c != 0 {
		return c
	}
	return cmp.Compare(k.StreetName, o.StreetName)
}

// GroupCount is one entry of a ranked grouping.
type GroupCount struct {
	Key   GroupKey `yaml:",inline"`
	Count int      `yaml:"count"`
}

// GroupAndCount counts items by key.
func GroupAndCount[T any](items []T, key func(T) GroupKey) map[GroupKey]int {
	counts := make(map[GroupKey]int)
	for _, it := range items {
		counts[key(it)]++
	}
	return counts
}

// TopN ranks counts by count descending, ties by key order, and keeps the
// first n. n <= 0 keeps every group.
func TopN(counts map[GroupKey]int, n int) []GroupCount {
	out := make([]GroupCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, GroupCount{Key: k, Count: c})
	}
	slices.SortFunc(out, func(a, b GroupCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return a.Key.Compare(b.Key)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// StoreKey builds the group key of a store row.
func StoreKey(r layer.Row) GroupKey {
	return GroupKey{
		Name:         r.Text(AttrName),
		StreetNumber: r.Text(AttrStreetNumber),
		StreetName:   r.Text(AttrStreetName),
	}
}

// ServedGroups counts how many source rows each store is nearest to.
func ServedGroups(joined []spatial.Joined) map[GroupKey]int {
	return GroupAndCount(joined, func(j spatial.Joined) GroupKey {
		return StoreKey(j.Target)
	})
}
