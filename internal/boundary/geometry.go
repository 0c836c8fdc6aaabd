package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/layer"
)

// familyOf maps a shapefile shape type onto a layer family.
func familyOf(t shp.ShapeType) (layer.Family, bool) {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM, shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return layer.FamilyPoint, true
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return layer.FamilyLine, true
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return layer.FamilyPolygon, true
	default:
		return "", false
	}
}

// toGeom converts a shape into XY geometry tagged with srid. nil means the
// shape is null or degenerate.
func toGeom(shape shp.Shape, srid int) geom.T {
	var g geom.T
	switch s := shape.(type) {
	case *shp.Point:
		g = geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		g = geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		g = multiPoint(s.Points)
	case *shp.PolyLine:
		g = multiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		g = multiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		g = multiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		g = multiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
	if g == nil {
		return nil
	}
	return setSRID(g, srid)
}

func setSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	}
	return g
}

func multiPoint(pts []shp.Point) geom.T {
	if len(pts) == 0 {
		return nil
	}
	return geom.NewMultiPointFlat(geom.XY, flatCoords(pts))
}

// partRanges splits a point array by its part offsets.
func partRanges(parts []int32, n int) [][2]int {
	out := make([][2]int, 0, len(parts))
	for i, start := range parts {
		end := n
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) < 0 || int(start) > end || end > n {
			continue
		}
		out = append(out, [2]int{int(start), end})
	}
	return out
}

func multiLineString(parts []int32, pts []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for i, r := range partRanges(parts, len(pts)) {
		if r[1]-r[0] < 2 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flatCoords(pts[r[0]:r[1]]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("boundary: skipping malformed line part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// multiPolygon groups rings into polygons. Shapefile outer rings wind
// clockwise and holes counter-clockwise; a hole belongs to the outer ring
// before it.
func multiPolygon(parts []int32, pts []shp.Point) geom.T {
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i, r := range partRanges(parts, len(pts)) {
		ringPts := pts[r[0]:r[1]]
		if len(ringPts) < 4 {
			continue
		}
		ring := geom.NewLinearRingFlat(geom.XY, flatCoords(ringPts))
		if signedArea(ringPts) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("boundary: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var a float64
	for i := 0; i+1 < len(pts); i++ {
		a += pts[i].X*pts[i+1].Y - pts[i+1].X*pts[i].Y
	}
	return a / 2
}

func flatCoords(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, p := range pts {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
