package stores

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/service-area/internal/crs"
	"github.com/sells-group/service-area/internal/layer"
)

const sampleCSV = `County,License Number,Operation Type,Establishment Type,Entity Name,DBA Name,Street Number,Street Name,Address Line 2,Address Line 3,City,State,Zip Code,Square Footage,Georeference
Onondaga,700001,Store,JAC,WEGMANS FOOD MARKETS INC,WEGMANS,6789,E GENESEE ST,,,FAYETTEVILLE,NY,13066,120000,POINT (-76.0012 43.0291)
Onondaga,700002,Store,JAC,WAL-MART STORES EAST LP,WALMART SUPERCENTER #1234,5399,W GENESEE ST,,,CAMILLUS,NY,13031,180000,POINT (-76.2458 43.0561)
Onondaga,700003,Store,JAC,TOPS MARKETS LLC,TOPS XPRESS,100,MAIN ST,,,LIVERPOOL,NY,13088,2000,POINT (-76.2101 43.1063)
Monroe,700004,Store,JAC,WEGMANS FOOD MARKETS INC,WEGMANS,3195,MONROE AVE,,,ROCHESTER,NY,14618,130000,POINT (-77.5300 43.1231)
Onondaga,700005,Store,JAC,PRICE CHOPPER OPERATING CO,PRICE CHOPPER,1,ERIE BLVD,,,SYRACUSE,NY,13202,60000,
`

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stores.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	records, err := Load(writeCSV(t, sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, "WEGMANS", records[0].DBAName)
	assert.Equal(t, "6789", records[0].StreetNumber)
	assert.Equal(t, "E GENESEE ST", records[0].StreetName)
	assert.Equal(t, "13066", records[0].ZipCode)
	assert.Equal(t, "POINT (-76.0012 43.0291)", records[0].Georeference)
	assert.Equal(t, "", records[4].Georeference)
}

func TestLoad_MinimalColumnsWithBOM(t *testing.T) {
	body := "\xEF\xBB\xBFDBA Name,Street Number,Street Name,County,Georeference,Extra\n" +
		"TOPS,1,A ST,Onondaga,POINT (1 2),ignored\n"
	records, err := Load(writeCSV(t, body))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "TOPS", records[0].DBAName)
	assert.Equal(t, "", records[0].City)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
		assert.True(t, errors.Is(err, ErrIO))
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := Load(writeCSV(t, ""))
		assert.True(t, errors.Is(err, ErrFormat))
	})
	t.Run("missing column", func(t *testing.T) {
		_, err := Load(writeCSV(t, "DBA Name,County\nTOPS,Onondaga\n"))
		require.True(t, errors.Is(err, ErrFormat))
		assert.Contains(t, err.Error(), "Georeference")
	})
	t.Run("ragged row", func(t *testing.T) {
		_, err := Load(writeCSV(t, "DBA Name,Street Number,Street Name,County,Georeference\nTOPS,1\n"))
		assert.True(t, errors.Is(err, ErrFormat))
	})
}

func TestFilter(t *testing.T) {
	records := []Record{
		{County: "Onondaga", DBAName: "WALMART"},
		{County: "Onondaga", DBAName: "WALMART XPRESS"},
		{County: "Onondaga", DBAName: "TARGETED"},
		{County: "Monroe", DBAName: "WALMART"},
		{County: "onondaga", DBAName: "WALMART"},
	}
	got := Filter(records, Criteria{
		Region:           "Onondaga",
		AllowPrefixes:    []string{"WALMART"},
		ExcludeSubstring: "XPRESS",
	})
	require.Len(t, got, 1)
	assert.Equal(t, records[0], got[0])
}

func TestCriteriaMatch(t *testing.T) {
	c := Criteria{
		Region:           "Onondaga",
		AllowPrefixes:    []string{"TOPS", "TOPS MARKETS", "TARGET"},
		ExcludeSubstring: "XPRESS",
	}
	tests := []struct {
		name string
		dba  string
		want bool
	}{
		{"exact prefix", "TOPS", true},
		{"multiple prefixes match", "TOPS MARKETS #12", true},
		{"prefix of longer word", "TARGETED", true},
		{"excluded variant", "TOPS XPRESS", false},
		{"case sensitive", "tops", false},
		{"not a prefix", "THE TOPS", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(Record{County: "Onondaga", DBAName: tt.dba}))
		})
	}

	t.Run("empty exclusion excludes nothing", func(t *testing.T) {
		c := Criteria{Region: "Onondaga", AllowPrefixes: []string{"TOPS"}}
		assert.True(t, c.Match(Record{County: "Onondaga", DBAName: "TOPS XPRESS"}))
	})
}

func TestDropMissingGeoreference(t *testing.T) {
	kept, dropped := DropMissingGeoreference([]Record{
		{DBAName: "A", Georeference: "POINT (1 2)"},
		{DBAName: "B", Georeference: "  "},
		{DBAName: "C"},
	})
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, "A", kept[0].DBAName)
}

func TestParsePoints(t *testing.T) {
	records := []Record{
		{DBAName: "A", Georeference: "POINT (-76.1474 43.0481)"},
		{DBAName: "B", Georeference: "POINT (-76.0 43.1)"},
	}
	got, skipped, err := ParsePoints(records, crs.WGS84, ParseOptions{})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Record.DBAName)
	assert.Equal(t, crs.Point{X: -76.1474, Y: 43.0481, SRID: crs.WGS84}, got[0].Point)
	assert.Equal(t, "B", got[1].Record.DBAName)
}

func TestParsePoints_StrictFailsWholeBatch(t *testing.T) {
	records := []Record{
		{DBAName: "A", Georeference: "POINT (-76.1 43.0)"},
		{DBAName: "BROKEN", Georeference: "POINT (-76.1"},
	}
	got, _, err := ParsePoints(records, crs.WGS84, ParseOptions{})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrGeometryParse))
	assert.True(t, strings.Contains(err.Error(), "record 1"))
}

func TestParsePoints_Lenient(t *testing.T) {
	records := []Record{
		{DBAName: "A", Georeference: "POINT (-76.1 43.0)"},
		{DBAName: "B", Georeference: "LINESTRING (0 0, 1 1)"},
		{DBAName: "C", Georeference: "POINT (-76.2 43.2)"},
	}
	got, skipped, err := ParsePoints(records, crs.WGS84, ParseOptions{Lenient: true})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Record.DBAName)
	assert.Equal(t, "C", got[1].Record.DBAName)
}

func TestReprojectKeepsPairs(t *testing.T) {
	located, _, err := ParsePoints([]Record{
		{DBAName: "CENTER", Georeference: "POINT (-75 45)"},
		{DBAName: "SYRACUSE", Georeference: "POINT (-76.1474 43.0481)"},
	}, crs.WGS84, ParseOptions{})
	require.NoError(t, err)

	moved, err := Reproject(located, 26918)
	require.NoError(t, err)
	require.Len(t, moved, 2)
	assert.Equal(t, "CENTER", moved[0].Record.DBAName)
	assert.Equal(t, 26918, moved[0].Point.SRID)
	assert.InDelta(t, 500000, moved[0].Point.X, 1e-6)
	assert.InDelta(t, 4982950.400, moved[0].Point.Y, 1e-3)
	assert.Equal(t, "SYRACUSE", moved[1].Record.DBAName)

	empty, err := Reproject(nil, 26918)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestToLayer(t *testing.T) {
	located := []Located{
		{Record: Record{DBAName: "WEGMANS", StreetNumber: "6789", Georeference: "POINT (1 2)"}, Point: crs.Point{X: 1, Y: 2, SRID: 26918}},
		{Record: Record{DBAName: "TOPS"}, Point: crs.Point{X: 3, Y: 4, SRID: 26918}},
	}
	l, err := ToLayer("stores", located, 26918)
	require.NoError(t, err)
	require.NoError(t, l.Validate())

	assert.Equal(t, layer.FamilyPoint, l.Family)
	require.Equal(t, 2, l.Len())
	_, hasGeoref := l.Column(ColumnGeoreference)
	assert.False(t, hasGeoref)
	assert.Equal(t, "County", l.Columns[0].Name)
	assert.Equal(t, "WEGMANS", l.Rows[0].Text(ColumnDBAName))
	assert.Equal(t, []float64{3, 4}, l.Rows[1].Geom.FlatCoords())

	_, err = ToLayer("stores", located, crs.WGS84)
	assert.Error(t, err)
}
