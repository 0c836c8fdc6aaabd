package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func pt(x, y float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{x, y})
}

func square(x, y, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x, y, x + size, y, x + size, y + size, x, y + size, x, y,
	}, []int{10})
}

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		g    geom.T
		want Family
	}{
		{pt(1, 2), FamilyPoint},
		{geom.NewMultiPointFlat(geom.XY, []float64{1, 2, 3, 4}), FamilyPoint},
		{geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1}), FamilyLine},
		{geom.NewMultiLineString(geom.XY), FamilyLine},
		{square(0, 0, 1), FamilyPolygon},
		{geom.NewMultiPolygon(geom.XY), FamilyPolygon},
	}
	for _, tt := range tests {
		got, err := FamilyOf(tt.g)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := FamilyOf(nil)
	assert.Error(t, err)
	_, err = FamilyOf(geom.NewGeometryCollection())
	assert.Error(t, err)
}

func TestFamilyFromTypeName(t *testing.T) {
	f, ok := FamilyFromTypeName("multipolygon")
	assert.True(t, ok)
	assert.Equal(t, FamilyPolygon, f)

	f, ok = FamilyFromTypeName("POINT")
	assert.True(t, ok)
	assert.Equal(t, FamilyPoint, f)

	_, ok = FamilyFromTypeName("GEOMETRY")
	assert.False(t, ok)
}

func TestAppendAssignsSequentialIDs(t *testing.T) {
	l := New("stores", 26918, FamilyPoint, []Column{{Name: "DBA Name", Type: TypeText}})

	id1, err := l.Append(map[string]any{"DBA Name": "TOPS"}, pt(0, 0))
	require.NoError(t, err)
	id2, err := l.Append(map[string]any{"DBA Name": "ALDI"}, pt(1, 1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)
	assert.Equal(t, 2, l.Len())
	require.NoError(t, l.Validate())
}

func TestAppendRejectsMixedFamily(t *testing.T) {
	l := New("stores", 26918, FamilyPoint, nil)
	_, err := l.Append(nil, square(0, 0, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestAppendRejectsUndeclaredAttribute(t *testing.T) {
	l := New("stores", 26918, FamilyPoint, []Column{{Name: "a", Type: TypeText}})
	_, err := l.Append(map[string]any{"b": "x"}, pt(0, 0))
	assert.Error(t, err)
}

func TestAppendRejectsForeignSRID(t *testing.T) {
	l := New("stores", 26918, FamilyPoint, nil)
	_, err := l.Append(nil, pt(0, 0).SetSRID(4326))
	assert.Error(t, err)

	_, err = l.Append(nil, pt(0, 0).SetSRID(26918))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		layer *Layer
	}{
		{"empty name", &Layer{Family: FamilyPoint}},
		{"duplicate column", &Layer{Name: "x", Family: FamilyPoint, Columns: []Column{{Name: "a"}, {Name: "a"}}}},
		{"empty column", &Layer{Name: "x", Family: FamilyPoint, Columns: []Column{{Name: ""}}}},
		{"duplicate id", &Layer{Name: "x", Family: FamilyPoint, Rows: []Row{
			{ID: 1, Geom: pt(0, 0)}, {ID: 1, Geom: pt(1, 1)},
		}}},
		{"zero id", &Layer{Name: "x", Family: FamilyPoint, Rows: []Row{{ID: 0, Geom: pt(0, 0)}}}},
		{"nil geometry", &Layer{Name: "x", Family: FamilyPoint, Rows: []Row{{ID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.layer.Validate())
		})
	}
}

func TestRowText(t *testing.T) {
	r := Row{Attrs: map[string]any{
		"s":   "36067000100",
		"i":   int64(42),
		"f":   36067000100.0,
		"g":   1.5,
		"b":   []byte("raw"),
		"nil": nil,
	}}
	assert.Equal(t, "36067000100", r.Text("s"))
	assert.Equal(t, "42", r.Text("i"))
	assert.Equal(t, "36067000100", r.Text("f"))
	assert.Equal(t, "1.5", r.Text("g"))
	assert.Equal(t, "raw", r.Text("b"))
	assert.Equal(t, "", r.Text("nil"))
	assert.Equal(t, "", r.Text("missing"))

	_, ok := r.Get("nil")
	assert.False(t, ok)
}

func TestEnvelope(t *testing.T) {
	l := New("t", 26918, FamilyPolygon, nil)
	_, ok := l.Envelope()
	assert.False(t, ok)

	_, err := l.Append(nil, square(0, 0, 10))
	require.NoError(t, err)
	_, err = l.Append(nil, square(20, 5, 10))
	require.NoError(t, err)

	b, ok := l.Envelope()
	require.True(t, ok)
	assert.Equal(t, 0.0, b.Min(0))
	assert.Equal(t, 0.0, b.Min(1))
	assert.Equal(t, 30.0, b.Max(0))
	assert.Equal(t, 15.0, b.Max(1))
}

func TestReproject(t *testing.T) {
	l := New("tracts", 4326, FamilyPoint, []Column{{Name: "GEOID", Type: TypeText}})
	_, err := l.Append(map[string]any{"GEOID": "1"}, pt(-75, 0))
	require.NoError(t, err)

	out, err := l.Reproject(26918)
	require.NoError(t, err)
	assert.Equal(t, 26918, out.SRID)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, int64(1), out.Rows[0].ID)
	assert.Equal(t, "1", out.Rows[0].Text("GEOID"))
	assert.InDelta(t, 500000, out.Rows[0].Geom.FlatCoords()[0], 1e-6)

	// Source untouched.
	assert.Equal(t, 4326, l.SRID)
	assert.Equal(t, -75.0, l.Rows[0].Geom.FlatCoords()[0])

	_, err = l.Reproject(3857)
	assert.Error(t, err)
}
