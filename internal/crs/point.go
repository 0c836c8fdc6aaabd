package crs

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// ErrGeometryParse is returned when a textual geometry is not a usable point.
var ErrGeometryParse = eris.New("crs: malformed point geometry")

// Point is an immutable coordinate pair tagged with its reference system.
// Geographic systems store longitude in X and latitude in Y.
type Point struct {
	X, Y float64
	SRID int
}

// Geom returns the point as a go-geom geometry carrying its SRID.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}).SetSRID(p.SRID)
}

// PointFromGeom reads the first coordinate of a point geometry.
func PointFromGeom(g geom.T, srid int) (Point, error) {
	pt, ok := g.(*geom.Point)
	if !ok {
		return Point{}, eris.Wrapf(ErrGeometryParse, "crs: expected POINT, got %T", g)
	}
	if pt.Empty() {
		return Point{}, eris.Wrap(ErrGeometryParse, "crs: empty point")
	}
	return Point{X: pt.X(), Y: pt.Y(), SRID: srid}, nil
}

// ParsePoint parses a WKT POINT such as "POINT (-76.1474 43.0481)".
func ParsePoint(text string, srid int) (Point, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Point{}, eris.Wrap(ErrGeometryParse, "crs: empty geometry text")
	}

	g, err := wkt.Unmarshal(text)
	if err != nil {
		return Point{}, eris.Wrapf(ErrGeometryParse, "crs: parse %q: %v", text, err)
	}

	p, err := PointFromGeom(g, srid)
	if err != nil {
		return Point{}, eris.Wrapf(err, "crs: parse %q", text)
	}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return Point{}, eris.Wrapf(ErrGeometryParse, "crs: non-finite coordinate in %q", text)
	}
	return p, nil
}
