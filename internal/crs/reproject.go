package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrCoordinateRange is returned for geographic coordinates off the globe.
var ErrCoordinateRange = eris.New("crs: coordinate out of range")

// Transformer converts coordinates between two registered systems. NAD83 and
// WGS 84 are related by a null datum shift.
type Transformer struct {
	from, to     System
	fromTM, toTM tmerc
}

// NewTransformer resolves both SRIDs and precomputes projection constants.
func NewTransformer(from, to int) (*Transformer, error) {
	src, err := Lookup(from)
	if err != nil {
		return nil, err
	}
	dst, err := Lookup(to)
	if err != nil {
		return nil, err
	}
	t := &Transformer{from: src, to: dst}
	if src.Projected {
		t.fromTM = newTmerc(src.Ellipsoid)
	}
	if dst.Projected {
		t.toTM = newTmerc(dst.Ellipsoid)
	}
	return t, nil
}

// Apply transforms one coordinate pair.
func (t *Transformer) Apply(x, y float64) (float64, float64, error) {
	if t.from.SRID == t.to.SRID {
		return x, y, nil
	}

	lon, lat := x, y
	if t.from.Projected {
		lon, lat = t.fromTM.inverse(t.from, x, y)
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, eris.Wrapf(ErrCoordinateRange, "crs: (%g, %g) in srid %d", x, y, t.from.SRID)
	}

	if !t.to.Projected {
		return lon, lat, nil
	}
	px, py := t.toTM.forward(t.to, lon, lat)
	return px, py, nil
}

// Transform returns p expressed in the target system.
func Transform(p Point, to int) (Point, error) {
	t, err := NewTransformer(p.SRID, to)
	if err != nil {
		return Point{}, err
	}
	x, y, err := t.Apply(p.X, p.Y)
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y, SRID: to}, nil
}

// Reproject transforms every point into the target system, preserving order.
// All points must share one source system.
func Reproject(points []Point, from, to int) ([]Point, error) {
	t, err := NewTransformer(from, to)
	if err != nil {
		return nil, err
	}

	out := make([]Point, len(points))
	for i, p := range points {
		if p.SRID != from {
			return nil, eris.Errorf("crs: point %d has srid %d, expected %d", i, p.SRID, from)
		}
		x, y, err := t.Apply(p.X, p.Y)
		if err != nil {
			return nil, eris.Wrapf(err, "crs: reproject point %d", i)
		}
		out[i] = Point{X: x, Y: y, SRID: to}
	}
	return out, nil
}

// ReprojectGeometry returns a transformed copy of g; g itself is untouched.
func ReprojectGeometry(g geom.T, from, to int) (geom.T, error) {
	t, err := NewTransformer(from, to)
	if err != nil {
		return nil, err
	}
	return t.Geometry(g)
}

// Geometry returns a transformed copy of g tagged with the target SRID.
func (t *Transformer) Geometry(g geom.T) (geom.T, error) {
	out, err := cloneWithSRID(g, t.to.SRID)
	if err != nil {
		return nil, err
	}

	flat := out.FlatCoords()
	stride := out.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		x, y, err := t.Apply(flat[i], flat[i+1])
		if err != nil {
			return nil, err
		}
		flat[i], flat[i+1] = x, y
	}
	return out, nil
}

func cloneWithSRID(g geom.T, srid int) (geom.T, error) {
	switch v := g.(type) {
	case *geom.Point:
		return v.Clone().SetSRID(srid), nil
	case *geom.MultiPoint:
		return v.Clone().SetSRID(srid), nil
	case *geom.LineString:
		return v.Clone().SetSRID(srid), nil
	case *geom.MultiLineString:
		return v.Clone().SetSRID(srid), nil
	case *geom.Polygon:
		return v.Clone().SetSRID(srid), nil
	case *geom.MultiPolygon:
		return v.Clone().SetSRID(srid), nil
	default:
		return nil, eris.Errorf("crs: cannot reproject %T", g)
	}
}
