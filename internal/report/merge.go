package report

import (
	"maps"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/layer"
	"github.com/sells-group/service-area/internal/spatial"
)

var (
	// ErrCardinalityViolation is returned when a join key repeats on either
	// side of a one-to-one merge.
	ErrCardinalityViolation = eris.New("report: merge is not one-to-one")
	// ErrMissingJoinKey is returned when a row has no value for the join key.
	ErrMissingJoinKey = eris.New("report: row has no join key")
)

// Attributes added to each match row by MatchRows.
const (
	AttrDistance        = "distance"
	AttrStoreName       = "store_name"
	AttrStoreStreetNum  = "store_street_number"
	AttrStoreStreetName = "store_street_name"
)

// maxReportedConflicts caps how many duplicate keys an error lists.
const maxReportedConflicts = 10

// Summary classifies keys across a merge.
type Summary struct {
	Matched   int `yaml:"matched"`
	LeftOnly  int `yaml:"left_only"`
	RightOnly int `yaml:"right_only"`
}

// Merged is one base row with its match. Match is nil for left-only rows.
type Merged struct {
	Key   string
	Base  layer.Row
	Match *layer.Row
}

// MergeResult is the outcome of MergeOneToOne.
type MergeResult struct {
	Rows    []Merged
	Summary Summary
}

// MatchRows turns nearest-store results into rows keyed like their source
// rows, carrying the store identity and the distance.
func MatchRows(joined []spatial.Joined) []layer.Row {
	out := make([]layer.Row, len(joined))
	for i, j := range joined {
		attrs := maps.Clone(j.Source.Attrs)
		if attrs == nil {
			attrs = make(map[string]any, 4)
		}
		attrs[AttrStoreName] = j.Target.Text(AttrName)
		attrs[AttrStoreStreetNum] = j.Target.Text(AttrStreetNumber)
		attrs[AttrStoreStreetName] = j.Target.Text(AttrStreetName)
		attrs[AttrDistance] = j.Distance
		out[i] = layer.Row{ID: j.Source.ID, Attrs: attrs, Geom: j.Source.Geom}
	}
	return out
}

// MergeOneToOne left-joins matches onto base by the key attribute, keeping
// base order. Every key must be present and unique on both sides; base rows
// without a match and match rows without a base row are counted, not
// dropped silently.
func MergeOneToOne(base, matches []layer.Row, key string) (*MergeResult, error) {
	baseIdx, err := uniqueKeys(base, key, "base")
	if err != nil {
		return nil, err
	}
	matchIdx, err := uniqueKeys(matches, key, "match")
	if err != nil {
		return nil, err
	}

	res := &MergeResult{Rows: make([]Merged, len(base))}
	for i, r := range base {
		k := r.Text(key)
		m := Merged{Key: k, Base: r}
		if j, ok := matchIdx[k]; ok {
			m.Match = &matches[j]
			res.Summary.Matched++
		} else {
			res.Summary.LeftOnly++
		}
		res.Rows[i] = m
	}
	for k := range matchIdx {
		if _, ok := baseIdx[k]; !ok {
			res.Summary.RightOnly++
		}
	}

	log := zap.L().With(zap.String("component", "report.merge"))
	if res.Summary.LeftOnly > 0 || res.Summary.RightOnly > 0 {
		log.Warn("report: merge has unmatched keys",
			zap.String("key", key),
			zap.Int("matched", res.Summary.Matched),
			zap.Int("left_only", res.Summary.LeftOnly),
			zap.Int("right_only", res.Summary.RightOnly),
		)
	} else {
		log.Info("report: merge complete", zap.String("key", key), zap.Int("matched", res.Summary.Matched))
	}
	return res, nil
}

func uniqueKeys(rows []layer.Row, key, side string) (map[string]int, error) {
	idx := make(map[string]int, len(rows))
	var dups []string
	for i, r := range rows {
		k := r.Text(key)
		if k == "" {
			return nil, eris.Wrapf(ErrMissingJoinKey, "report: %s row %d (id %d) has no %q", side, i, r.ID, key)
		}
		if _, seen := idx[k]; seen {
			if !slices.Contains(dups, k) {
				dups = append(dups, k)
			}
			continue
		}
		idx[k] = i
	}
	if len(dups) > 0 {
		shown := dups
		if len(shown) > maxReportedConflicts {
			shown = shown[:maxReportedConflicts]
		}
		return nil, eris.Wrapf(ErrCardinalityViolation, "report: %d duplicate %q keys on %s side: %s",
			len(dups), key, side, strings.Join(shown, ", "))
	}
	return idx, nil
}
