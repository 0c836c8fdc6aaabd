package spatial

import (
	"context"
	"math"
	"runtime"

	"github.com/google/btree"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/service-area/internal/crs"
	"github.com/sells-group/service-area/internal/layer"
)

var (
	// ErrCRSMismatch is returned when source and target do not share one SRID.
	// The joiner never reprojects.
	ErrCRSMismatch = eris.New("spatial: layers use different reference systems")
	// ErrEmptyTarget is returned when there is nothing to match against.
	ErrEmptyTarget = eris.New("spatial: target layer is empty")
)

// Match is the nearest target for one source row. Distance is in the linear
// unit of the shared reference system.
type Match struct {
	SourceID int64
	TargetID int64
	Distance float64
}

// Options tunes Nearest.
type Options struct {
	// Workers partitions the source rows; zero means GOMAXPROCS.
	Workers int
}

// minChunk keeps tiny inputs on one goroutine.
const minChunk = 256

type indexed struct {
	x, y float64
	id   int64
}

func lessIndexed(a, b indexed) bool {
	if a.x != b.x {
		return a.x < b.x
	}
	return a.id < b.id
}

// Index answers nearest-point queries over a fixed set of targets. It is
// read-only after construction and safe for concurrent queries.
type Index struct {
	tree *btree.BTreeG[indexed]
}

// NewIndex builds an index over the points of a target layer.
func NewIndex(target *layer.Layer) (*Index, error) {
	pts, err := points(target)
	if err != nil {
		return nil, err
	}
	tree := btree.NewG[indexed](32, lessIndexed)
	for _, p := range pts {
		tree.ReplaceOrInsert(p)
	}
	return &Index{tree: tree}, nil
}

// Len returns the number of indexed targets.
func (ix *Index) Len() int { return ix.tree.Len() }

// Nearest returns the closest target to (qx, qy) and its squared distance.
// Exact ties go to the lowest ID. ok is false for an empty index.
func (ix *Index) Nearest(qx, qy float64) (id int64, d2 float64, ok bool) {
	best := math.Inf(1)
	var bestID int64

	visit := func(p indexed, dx float64) bool {
		if dx*dx > best {
			return false
		}
		dy := p.y - qy
		d := dx*dx + dy*dy
		if d < best || (d == best && p.id < bestID) || !ok {
			best, bestID, ok = d, p.id, true
		}
		return true
	}

	pivot := indexed{x: qx, id: math.MinInt64}
	ix.tree.AscendGreaterOrEqual(pivot, func(p indexed) bool {
		return visit(p, p.x-qx)
	})
	ix.tree.DescendLessOrEqual(pivot, func(p indexed) bool {
		return visit(p, qx-p.x)
	})
	return bestID, best, ok
}

// Nearest finds, for every source row in order, the nearest target row.
// Both layers must be point layers in the same reference system.
func Nearest(ctx context.Context, source, target *layer.Layer, opts Options) ([]Match, error) {
	if err := checkPair(source, target); err != nil {
		return nil, err
	}
	if source.Len() == 0 {
		return []Match{}, nil
	}
	if target.Len() == 0 {
		return nil, eris.Wrapf(ErrEmptyTarget, "spatial: %d source rows in %s, no rows in %s", source.Len(), source.Name, target.Name)
	}

	src, err := points(source)
	if err != nil {
		return nil, err
	}
	ix, err := NewIndex(target)
	if err != nil {
		return nil, err
	}

	out := make([]Match, len(src))
	chunks := partition(len(src), opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		g.Go(func() error {
			for i := c.lo; i < c.hi; i++ {
				if (i-c.lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				id, d2, _ := ix.Nearest(src[i].x, src[i].y)
				out[i] = Match{SourceID: src[i].id, TargetID: id, Distance: math.Sqrt(d2)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "spatial: nearest")
	}

	zap.L().Info("spatial: nearest join complete",
		zap.String("component", "spatial.nearest"),
		zap.String("source", source.Name),
		zap.String("target", target.Name),
		zap.Int("matches", len(out)),
		zap.Int("workers", len(chunks)),
	)
	return out, nil
}

// NearestBruteForce compares every source point with every target point.
// It defines the result Nearest must reproduce.
func NearestBruteForce(source, target *layer.Layer) ([]Match, error) {
	if err := checkPair(source, target); err != nil {
		return nil, err
	}
	if source.Len() == 0 {
		return []Match{}, nil
	}
	if target.Len() == 0 {
		return nil, eris.Wrapf(ErrEmptyTarget, "spatial: no rows in %s", target.Name)
	}
	src, err := points(source)
	if err != nil {
		return nil, err
	}
	dst, err := points(target)
	if err != nil {
		return nil, err
	}

	out := make([]Match, len(src))
	for i, s := range src {
		best := math.Inf(1)
		var bestID int64
		for j, t := range dst {
			dx, dy := t.x-s.x, t.y-s.y
			d := dx*dx + dy*dy
			if j == 0 || d < best || (d == best && t.id < bestID) {
				best, bestID = d, t.id
			}
		}
		out[i] = Match{SourceID: s.id, TargetID: bestID, Distance: math.Sqrt(best)}
	}
	return out, nil
}

func checkPair(source, target *layer.Layer) error {
	if source.SRID != target.SRID {
		return eris.Wrapf(ErrCRSMismatch, "spatial: %s is srid %d, %s is srid %d",
			source.Name, source.SRID, target.Name, target.SRID)
	}
	for _, l := range []*layer.Layer{source, target} {
		if l.Family != layer.FamilyPoint {
			return eris.Wrapf(ErrGeometryFamily, "spatial: %s holds %s, need points", l.Name, l.Family)
		}
	}
	if !crs.IsProjected(source.SRID) {
		zap.L().Warn("spatial: joining in a geographic reference system, distances are in degrees",
			zap.String("component", "spatial.nearest"),
			zap.Int("srid", source.SRID),
		)
	}
	return nil
}

func points(l *layer.Layer) ([]indexed, error) {
	out := make([]indexed, len(l.Rows))
	for i, r := range l.Rows {
		p, ok := r.Geom.(*geom.Point)
		if !ok || p.Empty() {
			return nil, eris.Wrapf(ErrGeometryFamily, "spatial: %s row %d is not a point", l.Name, r.ID)
		}
		out[i] = indexed{x: p.X(), y: p.Y(), id: r.ID}
	}
	return out, nil
}

type span struct{ lo, hi int }

func partition(n, workers int) []span {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if limit := (n + minChunk - 1) / minChunk; workers > limit {
		workers = limit
	}
	if workers < 1 {
		workers = 1
	}
	size := (n + workers - 1) / workers
	spans := make([]span, 0, workers)
	for lo := 0; lo < n; lo += size {
		spans = append(spans, span{lo: lo, hi: min(lo+size, n)})
	}
	return spans
}
