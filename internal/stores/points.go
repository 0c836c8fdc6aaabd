package stores

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/crs"
	"github.com/sells-group/service-area/internal/layer"
)

// ErrGeometryParse is returned when a georeference is not a valid point.
var ErrGeometryParse = crs.ErrGeometryParse

// Located pairs a record with its parsed location.
type Located struct {
	Record Record
	Point  crs.Point
}

// ParseOptions controls georeference parsing.
type ParseOptions struct {
	// Lenient skips unparseable georeferences instead of failing.
	Lenient bool
}

// ParsePoints parses each record's georeference as a point in srid. Output
// order matches input order; in lenient mode bad rows are skipped and
// counted in the returned total.
func ParsePoints(records []Record, srid int, opts ParseOptions) ([]Located, int, error) {
	out := make([]Located, 0, len(records))
	skipped := 0
	for i, r := range records {
		p, err := crs.ParsePoint(r.Georeference, srid)
		if err != nil {
			if !opts.Lenient {
				return nil, 0, eris.Wrapf(err, "stores: record %d (%s)", i, r.DBAName)
			}
			zap.L().Warn("stores: skipping unparseable georeference",
				zap.String("component", "stores.points"),
				zap.Int("record", i),
				zap.String("dba_name", r.DBAName),
				zap.String("georeference", r.Georeference),
			)
			skipped++
			continue
		}
		out = append(out, Located{Record: r, Point: p})
	}
	return out, skipped, nil
}

// Reproject converts every location to srid, keeping records paired with
// their points.
func Reproject(located []Located, srid int) ([]Located, error) {
	if len(located) == 0 {
		return nil, nil
	}
	pts := make([]crs.Point, len(located))
	for i, l := range located {
		pts[i] = l.Point
	}
	moved, err := crs.Reproject(pts, located[0].Point.SRID, srid)
	if err != nil {
		return nil, eris.Wrap(err, "stores: reproject")
	}
	out := make([]Located, len(located))
	for i, l := range located {
		out[i] = Located{Record: l.Record, Point: moved[i]}
	}
	return out, nil
}

// ToLayer builds a point layer named name from located stores. All points
// must share one SRID; the georeference column is not carried over.
func ToLayer(name string, located []Located, srid int) (*layer.Layer, error) {
	cols, err := AttributeColumns()
	if err != nil {
		return nil, err
	}
	l := layer.New(name, srid, layer.FamilyPoint, cols)
	for i, s := range located {
		if s.Point.SRID != srid {
			return nil, eris.Wrapf(crs.ErrUnsupportedCRS, "stores: point %d has srid %d, layer is %d", i, s.Point.SRID, srid)
		}
		if _, err := l.Append(s.Record.Attributes(), s.Point.Geom()); err != nil {
			return nil, eris.Wrapf(err, "stores: append store %d", i)
		}
	}
	return l, nil
}
