package crs

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		srid      int
		projected bool
		zone      int
		south     bool
		cm        float64
	}{
		{4326, false, 0, false, 0},
		{4269, false, 0, false, 0},
		{26918, true, 18, false, -75},
		{32618, true, 18, false, -75},
		{32733, true, 33, true, 15},
		{26901, true, 1, false, -177},
	}
	for _, tt := range tests {
		s, err := Lookup(tt.srid)
		require.NoError(t, err, "srid %d", tt.srid)
		assert.Equal(t, tt.projected, s.Projected)
		if tt.projected {
			assert.Equal(t, tt.zone, s.Zone)
			assert.Equal(t, tt.south, s.South)
			assert.InDelta(t, tt.cm, s.CentralMeridian(), 1e-12)
			assert.Equal(t, "metre", s.Unit())
		}
	}
}

func TestLookupUnsupported(t *testing.T) {
	for _, srid := range []int{0, 3857, 26924, 32661, 2263} {
		_, err := Lookup(srid)
		assert.True(t, errors.Is(err, ErrUnsupportedCRS), "srid %d", srid)
	}
}

func TestSystemWKT(t *testing.T) {
	s, err := Lookup(26918)
	require.NoError(t, err)
	w := s.WKT()
	assert.Contains(t, w, `PROJCS["NAD83 / UTM zone 18N"`)
	assert.Contains(t, w, `PARAMETER["central_meridian",-75]`)
	assert.Contains(t, w, `AUTHORITY["EPSG","26918"]`)

	g, err := Lookup(4326)
	require.NoError(t, err)
	assert.Contains(t, g.WKT(), `GEOGCS["WGS 84"`)
	assert.Contains(t, g.WKT(), `AUTHORITY["EPSG","4326"]]`)
}

func TestTransformKnownPoints(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		to       int
		wantX    float64
		wantY    float64
	}{
		{"equator on central meridian", -75, 0, 26918, 500000, 0},
		{"45N on central meridian", -75, 45, 32618, 500000, 4982950.400},
		{"syracuse", -76.1474, 43.0481, 26918, 406549.865, 4766795.014},
		{"southern hemisphere equator", 15, 0, 32733, 500000, 10000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := WGS84
			if tt.to == 26918 {
				src = NAD83
			}
			p, err := Transform(Point{X: tt.lon, Y: tt.lat, SRID: src}, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantX, p.X, 0.01)
			assert.InDelta(t, tt.wantY, p.Y, 0.01)
			assert.Equal(t, tt.to, p.SRID)
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		// Within four degrees of the zone 18 central meridian.
		lon := -79 + rng.Float64()*8
		lat := -60 + rng.Float64()*140
		src := Point{X: lon, Y: lat, SRID: WGS84}

		to := 32618
		if lat < 0 {
			to = 32718
		}
		proj, err := Transform(src, to)
		require.NoError(t, err)
		back, err := Transform(proj, WGS84)
		require.NoError(t, err)

		assert.InDelta(t, lon, back.X, 1e-9, "lon for %v", src)
		assert.InDelta(t, lat, back.Y, 1e-9, "lat for %v", src)
	}
}

func TestTransformIdentityAndDatum(t *testing.T) {
	p := Point{X: -76.1, Y: 43.1, SRID: WGS84}
	same, err := Transform(p, WGS84)
	require.NoError(t, err)
	assert.Equal(t, p, same)

	nad, err := Transform(p, NAD83)
	require.NoError(t, err)
	assert.Equal(t, Point{X: -76.1, Y: 43.1, SRID: NAD83}, nad)
}

func TestTransformOutOfRange(t *testing.T) {
	_, err := Transform(Point{X: -76, Y: 95, SRID: WGS84}, 26918)
	assert.True(t, errors.Is(err, ErrCoordinateRange))
}

func TestReprojectPreservesOrder(t *testing.T) {
	pts := []Point{
		{X: -76.1, Y: 43.0, SRID: WGS84},
		{X: -76.2, Y: 43.1, SRID: WGS84},
		{X: -76.3, Y: 43.2, SRID: WGS84},
	}
	out, err := Reproject(pts, WGS84, 26918)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i := range pts {
		want, err := Transform(pts[i], 26918)
		require.NoError(t, err)
		assert.Equal(t, want, out[i])
	}
	// Inputs untouched.
	assert.Equal(t, -76.1, pts[0].X)
	assert.Equal(t, WGS84, pts[0].SRID)

	again, err := Reproject(pts, WGS84, 26918)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestReprojectRejectsMixedSRID(t *testing.T) {
	_, err := Reproject([]Point{{X: 1, Y: 1, SRID: 26918}}, WGS84, 26918)
	assert.Error(t, err)
}

func TestReprojectGeometry(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		-76.2, 43.0, -76.1, 43.0, -76.1, 43.1, -76.2, 43.1, -76.2, 43.0,
	}, []int{10}).SetSRID(WGS84)

	out, err := ReprojectGeometry(poly, WGS84, 26918)
	require.NoError(t, err)

	assert.Equal(t, 26918, out.SRID())
	assert.Equal(t, -76.2, poly.FlatCoords()[0], "input must not be mutated")

	first, err := Transform(Point{X: -76.2, Y: 43.0, SRID: WGS84}, 26918)
	require.NoError(t, err)
	assert.InDelta(t, first.X, out.FlatCoords()[0], 1e-9)
	assert.InDelta(t, first.Y, out.FlatCoords()[1], 1e-9)
	assert.Len(t, out.FlatCoords(), 10)
}

func TestReprojectGeometryUnsupported(t *testing.T) {
	gc := geom.NewGeometryCollection()
	_, err := ReprojectGeometry(gc, WGS84, 26918)
	assert.Error(t, err)
}

func TestParsePoint(t *testing.T) {
	p, err := ParsePoint("POINT (-76.1474 43.0481)", WGS84)
	require.NoError(t, err)
	assert.Equal(t, Point{X: -76.1474, Y: 43.0481, SRID: WGS84}, p)

	p, err = ParsePoint("  POINT(-76 43)  ", WGS84)
	require.NoError(t, err)
	assert.Equal(t, -76.0, p.X)

	assert.Equal(t, []float64{-76, 43}, p.Geom().FlatCoords())
	assert.Equal(t, WGS84, p.Geom().SRID())
}

func TestParsePointErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"POINT (abc def)",
		"LINESTRING (0 0, 1 1)",
		"POINT EMPTY",
		"garbage",
	} {
		_, err := ParsePoint(text, WGS84)
		assert.True(t, errors.Is(err, ErrGeometryParse), "text %q: %v", text, err)
	}
}
