// Package layer models a named table of attributed geometries sharing one
// reference system and one geometry family.
package layer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/service-area/internal/crs"
)

// Family groups geometry types that may share a layer.
type Family string

const (
	FamilyPoint   Family = "POINT"
	FamilyLine    Family = "LINESTRING"
	FamilyPolygon Family = "POLYGON"
)

// FamilyOf classifies a geometry.
func FamilyOf(g geom.T) (Family, error) {
	switch g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return FamilyPoint, nil
	case *geom.LineString, *geom.MultiLineString:
		return FamilyLine, nil
	case *geom.Polygon, *geom.MultiPolygon:
		return FamilyPolygon, nil
	case nil:
		return "", eris.New("layer: nil geometry")
	default:
		return "", eris.Errorf("layer: unsupported geometry %T", g)
	}
}

// FamilyFromTypeName maps a GeoPackage geometry_type_name onto a family.
// GEOMETRY is accepted and resolved from the rows.
func FamilyFromTypeName(name string) (Family, bool) {
	switch strings.ToUpper(name) {
	case "POINT", "MULTIPOINT":
		return FamilyPoint, true
	case "LINESTRING", "MULTILINESTRING", "CURVE", "MULTICURVE":
		return FamilyLine, true
	case "POLYGON", "MULTIPOLYGON", "SURFACE", "MULTISURFACE":
		return FamilyPolygon, true
	}
	return "", false
}

// ColumnType is the storage class of an attribute column.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
)

// Column declares one attribute.
type Column struct {
	Name string
	Type ColumnType
}

// Row is one feature. ID is the feature id and is unique within a layer.
type Row struct {
	ID    int64
	Attrs map[string]any
	Geom  geom.T
}

// Get returns the attribute value and whether it is present and non-nil.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok && v != nil
}

// Text returns the attribute formatted as a string, or "" when absent.
func (r Row) Text(name string) string {
	v, ok := r.Get(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%.0f", t)
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// Layer is an ordered table of rows.
type Layer struct {
	Name    string
	SRID    int
	Family  Family
	Columns []Column
	Rows    []Row
}

// New creates an empty layer.
func New(name string, srid int, family Family, columns []Column) *Layer {
	return &Layer{Name: name, SRID: srid, Family: family, Columns: columns}
}

// Len returns the number of rows.
func (l *Layer) Len() int { return len(l.Rows) }

// Column looks up a declared column.
func (l *Layer) Column(name string) (Column, bool) {
	for _, c := range l.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Append adds a row with the next free ID and returns that ID.
func (l *Layer) Append(attrs map[string]any, g geom.T) (int64, error) {
	var next int64 = 1
	if n := len(l.Rows); n > 0 {
		next = l.Rows[n-1].ID + 1
	}
	row := Row{ID: next, Attrs: attrs, Geom: g}
	if err := l.checkRow(len(l.Rows), row); err != nil {
		return 0, err
	}
	l.Rows = append(l.Rows, row)
	return next, nil
}

// Validate checks every row against the layer's invariants: one SRID, one
// geometry family, attributes drawn from the declared columns and unique
// positive IDs.
func (l *Layer) Validate() error {
	if l.Name == "" {
		return eris.New("layer: empty name")
	}
	seenCols := make(map[string]bool, len(l.Columns))
	for _, c := range l.Columns {
		if c.Name == "" {
			return eris.Errorf("layer %s: empty column name", l.Name)
		}
		if seenCols[c.Name] {
			return eris.Errorf("layer %s: duplicate column %q", l.Name, c.Name)
		}
		seenCols[c.Name] = true
	}

	seenIDs := make(map[int64]bool, len(l.Rows))
	for i, r := range l.Rows {
		if seenIDs[r.ID] {
			return eris.Errorf("layer %s: duplicate row id %d at index %d", l.Name, r.ID, i)
		}
		seenIDs[r.ID] = true
		if err := l.checkRow(i, r); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layer) checkRow(i int, r Row) error {
	if r.ID <= 0 {
		return eris.Errorf("layer %s: row %d has non-positive id %d", l.Name, i, r.ID)
	}
	fam, err := FamilyOf(r.Geom)
	if err != nil {
		return eris.Wrapf(err, "layer %s: row %d", l.Name, i)
	}
	if fam != l.Family {
		return eris.Errorf("layer %s: row %d is %s, layer holds %s", l.Name, i, fam, l.Family)
	}
	if srid := r.Geom.SRID(); srid != 0 && srid != l.SRID {
		return eris.Errorf("layer %s: row %d has srid %d, layer has %d", l.Name, i, srid, l.SRID)
	}
	for k := range r.Attrs {
		if _, ok := l.Column(k); !ok {
			return eris.Errorf("layer %s: row %d has undeclared attribute %q", l.Name, i, k)
		}
	}
	return nil
}

// Envelope returns the bounding box of all rows. ok is false for an empty
// layer.
func (l *Layer) Envelope() (b *geom.Bounds, ok bool) {
	for _, r := range l.Rows {
		if r.Geom == nil || r.Geom.Empty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(r.Geom)
	}
	return b, b != nil
}

// Reproject returns a copy of the layer with every geometry transformed into
// srid. Attribute maps are shared with the receiver.
func (l *Layer) Reproject(srid int) (*Layer, error) {
	t, err := crs.NewTransformer(l.SRID, srid)
	if err != nil {
		return nil, eris.Wrapf(err, "layer %s: reproject", l.Name)
	}

	out := New(l.Name, srid, l.Family, l.Columns)
	out.Rows = make([]Row, len(l.Rows))
	for i, r := range l.Rows {
		g, err := t.Geometry(r.Geom)
		if err != nil {
			return nil, eris.Wrapf(err, "layer %s: reproject row %d", l.Name, r.ID)
		}
		out.Rows[i] = Row{ID: r.ID, Attrs: r.Attrs, Geom: g}
	}
	return out, nil
}
