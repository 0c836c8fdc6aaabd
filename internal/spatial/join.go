package spatial

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/service-area/internal/layer"
)

// Joined pairs a source row with the target row nearest to it.
type Joined struct {
	Source   layer.Row
	Target   layer.Row
	Distance float64
}

// JoinNearest runs Nearest and resolves the matched target rows. The result
// has one entry per source row, in source order.
func JoinNearest(ctx context.Context, source, target *layer.Layer, opts Options) ([]Joined, error) {
	matches, err := Nearest(ctx, source, target, opts)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]layer.Row, target.Len())
	for _, r := range target.Rows {
		byID[r.ID] = r
	}

	out := make([]Joined, len(matches))
	for i, m := range matches {
		t, ok := byID[m.TargetID]
		if !ok {
			return nil, eris.Errorf("spatial: match for source %d names unknown target %d", m.SourceID, m.TargetID)
		}
		out[i] = Joined{Source: source.Rows[i], Target: t, Distance: m.Distance}
	}
	return out, nil
}
