// Package boundary imports TIGER-style shapefiles as analysis layers and
// bundles them into a boundary GeoPackage.
package boundary

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/layer"
)

// ErrUnsupportedShape is returned for shapefiles holding shape types other
// than points, lines and polygons.
var ErrUnsupportedShape = eris.New("boundary: unsupported shape type")

// ReadShapefile reads the shapefile at path into a layer named name whose
// coordinates are in srid. Records with null or degenerate shapes are
// skipped.
func ReadShapefile(path, name string, srid int) (*layer.Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	family, ok := familyOf(reader.GeometryType)
	if !ok {
		return nil, eris.Wrapf(ErrUnsupportedShape, "boundary: %s has shape type %d", path, reader.GeometryType)
	}

	fields := reader.Fields()
	cols := make([]layer.Column, len(fields))
	for i, f := range fields {
		cols[i] = layer.Column{Name: fieldName(f), Type: fieldType(f)}
	}

	l := layer.New(name, srid, family, cols)
	skipped := 0
	for reader.Next() {
		idx, shape := reader.Shape()
		g := toGeom(shape, srid)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(map[string]any, len(cols))
		for i, c := range cols {
			attrs[c.Name] = parseValue(reader.Attribute(i), c.Type)
		}
		if _, err := l.Append(attrs, g); err != nil {
			return nil, eris.Wrapf(err, "boundary: %s record %d", path, idx)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s after %d records", path, l.Len()+skipped)
	}

	log := zap.L().With(zap.String("component", "boundary.shapefile"))
	if skipped > 0 {
		log.Warn("boundary: skipped null shapes", zap.String("layer", name), zap.Int("skipped", skipped))
	}
	log.Info("boundary: shapefile read",
		zap.String("path", path),
		zap.String("layer", name),
		zap.String("family", string(family)),
		zap.Int("features", l.Len()),
	)
	return l, nil
}

func fieldName(f shp.Field) string {
	return strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
}

func fieldType(f shp.Field) layer.ColumnType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			return layer.TypeInteger
		}
		return layer.TypeReal
	case 'F':
		return layer.TypeReal
	default:
		return layer.TypeText
	}
}

// parseValue converts a raw dBASE value; blanks and unparseable numbers
// become nil.
func parseValue(raw string, t layer.ColumnType) any {
	v := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if v == "" {
		return nil
	}
	switch t {
	case layer.TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int64(f)
		}
		return nil
	case layer.TypeReal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return nil
	default:
		return v
	}
}
