package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/service-area/internal/config"
	"github.com/sells-group/service-area/internal/gpkg"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"analyze", "layers", "boundaries"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "service-area", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	for _, name := range []string{"stores", "boundaries", "out", "top", "format", "plots", "xlsx", "workers", "lenient"} {
		assert.NotNil(t, analyzeCmd.Flags().Lookup(name), "analyze should have --%s flag", name)
	}
	assert.Equal(t, "text", analyzeCmd.Flags().Lookup("format").DefValue)
}

func TestBoundariesImportCommand_Flags(t *testing.T) {
	srid := boundariesImportCmd.Flags().Lookup("srid")
	require.NotNil(t, srid)
	assert.Equal(t, "4269", srid.DefValue)
	assert.NotNil(t, boundariesImportCmd.Flags().Lookup("layer"))
	assert.NotNil(t, boundariesImportCmd.Flags().Lookup("out"))
}

func TestApplyAnalyzeFlags(t *testing.T) {
	c := &cobra.Command{Use: "analyze"}
	c.Flags().String("stores", "", "")
	c.Flags().String("boundaries", "", "")
	c.Flags().String("out", "", "")
	c.Flags().String("plots", "", "")
	c.Flags().String("xlsx", "", "")
	c.Flags().Int("top", 10, "")
	c.Flags().Int("workers", 0, "")
	c.Flags().Bool("lenient", false, "")
	require.NoError(t, c.Flags().Parse([]string{"--stores", "s.csv", "--top", "3", "--lenient"}))

	ac := config.AnalysisConfig{
		StoresPath:     "default.csv",
		BoundariesPath: "demo.gpkg",
		TopN:           10,
		Workers:        4,
	}
	require.NoError(t, applyAnalyzeFlags(c, &ac))

	assert.Equal(t, "s.csv", ac.StoresPath)
	assert.Equal(t, "demo.gpkg", ac.BoundariesPath, "unset flags keep config values")
	assert.Equal(t, 3, ac.TopN)
	assert.Equal(t, 4, ac.Workers)
	assert.True(t, ac.LenientGeometry)
}

func TestFormatLayers(t *testing.T) {
	var buf bytes.Buffer
	formatLayers(&buf, []gpkg.Info{
		{Name: "stores", GeometryType: "POINT", SRID: 26918, Features: 1234},
		{Name: "tracts", GeometryType: "MULTIPOLYGON", SRID: 4269, Features: 140},
	})

	out := buf.String()
	assert.Contains(t, out, "LAYER")
	assert.Contains(t, out, "FEATURES")
	assert.Contains(t, out, "stores")
	assert.Contains(t, out, "26918")
	assert.Contains(t, out, "1,234")
	assert.Contains(t, out, "MULTIPOLYGON")
}

func TestParseSources(t *testing.T) {
	sources, err := parseSources([]string{"county=c.shp", "tracts=t.shp"})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "tracts", sources[1].Name)
	assert.Equal(t, "t.shp", sources[1].Path)

	_, err = parseSources(nil)
	assert.Error(t, err)
	_, err = parseSources([]string{"county"})
	assert.Error(t, err)
}
