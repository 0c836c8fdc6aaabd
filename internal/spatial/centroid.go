// Package spatial derives tract centroids and joins each source point to its
// nearest target point.
package spatial

import (
	"maps"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/layer"
)

// ErrGeometryFamily is returned when a layer holds the wrong kind of geometry
// for the operation.
var ErrGeometryFamily = eris.New("spatial: wrong geometry family")

// Centroids returns a point layer named name with one row per polygon row of
// l: same IDs, attributes and order. The centroid is area weighted with holes
// subtracted; polygons with zero area use the mean of their vertices.
func Centroids(l *layer.Layer, name string) (*layer.Layer, error) {
	if l.Family != layer.FamilyPolygon {
		return nil, eris.Wrapf(ErrGeometryFamily, "spatial: centroids of %s layer %s", l.Family, l.Name)
	}

	out := layer.New(name, l.SRID, layer.FamilyPoint, l.Columns)
	out.Rows = make([]layer.Row, len(l.Rows))
	for i, r := range l.Rows {
		x, y, err := centroid(r.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "spatial: layer %s row %d", l.Name, r.ID)
		}
		out.Rows[i] = layer.Row{
			ID:    r.ID,
			Attrs: maps.Clone(r.Attrs),
			Geom:  geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(l.SRID),
		}
	}

	zap.L().Debug("spatial: centroids derived",
		zap.String("component", "spatial.centroid"),
		zap.String("layer", l.Name),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

func centroid(g geom.T) (float64, float64, error) {
	og, err := toOrb(g)
	if err != nil {
		return 0, 0, err
	}
	c, area := planar.CentroidArea(og)
	if area != 0 {
		return c[0], c[1], nil
	}
	return vertexMean(og)
}

// vertexMean averages ring vertices, counting a closing vertex once.
func vertexMean(g orb.Geometry) (float64, float64, error) {
	var polys orb.MultiPolygon
	switch t := g.(type) {
	case orb.Polygon:
		polys = orb.MultiPolygon{t}
	case orb.MultiPolygon:
		polys = t
	}

	var sx, sy float64
	n := 0
	for _, p := range polys {
		for _, ring := range p {
			pts := []orb.Point(ring)
			if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
				pts = pts[:len(pts)-1]
			}
			for _, pt := range pts {
				sx += pt[0]
				sy += pt[1]
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0, eris.Wrap(ErrGeometryFamily, "spatial: polygon has no vertices")
	}
	return sx / float64(n), sy / float64(n), nil
}

func toOrb(g geom.T) (orb.Geometry, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonToOrb(t), nil
	case *geom.MultiPolygon:
		mp := make(orb.MultiPolygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			mp = append(mp, polygonToOrb(t.Polygon(i)))
		}
		return mp, nil
	default:
		return nil, eris.Wrapf(ErrGeometryFamily, "spatial: expected polygon, got %T", g)
	}
}

func polygonToOrb(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		flat, stride := lr.FlatCoords(), lr.Stride()
		ring := make(orb.Ring, 0, len(flat)/stride)
		for j := 0; j+1 < len(flat); j += stride {
			ring = append(ring, orb.Point{flat[j], flat[j+1]})
		}
		out = append(out, ring)
	}
	return out
}
