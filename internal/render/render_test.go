package render

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/service-area/internal/layer"
)

func square(t *testing.T, name string, x0, y0, size float64) *layer.Layer {
	t.Helper()
	l := layer.New(name, 26918, layer.FamilyPolygon, nil)
	_, err := l.Append(nil, geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10}))
	require.NoError(t, err)
	return l
}

func storeLayer(t *testing.T, coords ...[2]float64) *layer.Layer {
	t.Helper()
	l := layer.New("stores", 26918, layer.FamilyPoint, nil)
	for _, c := range coords {
		_, err := l.Append(nil, geom.NewPointFlat(geom.XY, c[:]))
		require.NoError(t, err)
	}
	return l
}

func TestOverview(t *testing.T) {
	var buf bytes.Buffer
	err := Overview(&buf,
		square(t, "county", 0, 0, 1000),
		square(t, "city", 200, 200, 300),
		storeLayer(t, [2]float64{250, 250}, [2]float64{700, 800}),
	)
	require.NoError(t, err)

	svg := buf.String()
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.True(t, strings.HasSuffix(svg, "</svg>\n"))
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Equal(t, 2, strings.Count(svg, `fill-rule="evenodd"`))
	assert.Contains(t, svg, CountyStyle.Fill)
	assert.Contains(t, svg, CityStyle.Fill)
	assert.Contains(t, svg, StoreStyle.Fill)
	// The county's top-left corner lands on the margin; y is flipped.
	assert.Contains(t, svg, "M20.00,780.00")
}

func TestOverview_Errors(t *testing.T) {
	empty := layer.New("county", 26918, layer.FamilyPolygon, nil)
	err := Overview(io.Discard, empty, nil, nil)
	assert.True(t, errors.Is(err, ErrNothingToDraw))

	wgs := layer.New("stores", 4326, layer.FamilyPoint, nil)
	assert.Error(t, Overview(io.Discard, square(t, "county", 0, 0, 10), nil, wgs))
}

func TestChoropleth(t *testing.T) {
	tracts := square(t, "tracts", 0, 0, 100)
	_, err := tracts.Append(nil, geom.NewPolygonFlat(geom.XY, []float64{100, 0, 200, 0, 200, 100, 100, 100, 100, 0}, []int{10}))
	require.NoError(t, err)
	_, err = tracts.Append(nil, geom.NewPolygonFlat(geom.XY, []float64{200, 0, 300, 0, 300, 100, 200, 100, 200, 0}, []int{10}))
	require.NoError(t, err)

	var buf bytes.Buffer
	values := map[int64]float64{1: 100, 2: 5000}
	require.NoError(t, Choropleth(&buf, tracts, values, storeLayer(t, [2]float64{50, 50}), "metres"))

	svg := buf.String()
	assert.Contains(t, svg, Color(100, 100, 5000))
	assert.Contains(t, svg, Color(5000, 100, 5000))
	assert.Contains(t, svg, missingFill)
	assert.Contains(t, svg, `id="legend"`)
	assert.Contains(t, svg, "metres")
	assert.Equal(t, 1, strings.Count(svg, "<circle"))
}

func TestColor(t *testing.T) {
	assert.Equal(t, "#ffffcc", Color(0, 0, 10))
	assert.Equal(t, "#253494", Color(10, 0, 10))
	assert.Equal(t, "#41b6c4", Color(5, 0, 10))
	assert.Equal(t, "#ffffcc", Color(3, 3, 3))
	assert.Equal(t, "#253494", Color(99, 0, 10))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	ok := filepath.Join(dir, "ok.svg")
	require.NoError(t, WriteFile(ok, func(w io.Writer) error {
		return Overview(w, square(t, "county", 0, 0, 10), nil, nil)
	}))
	info, err := os.Stat(ok)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	bad := filepath.Join(dir, "bad.svg")
	err = WriteFile(bad, func(w io.Writer) error {
		return Overview(w, nil, nil, nil)
	})
	assert.True(t, errors.Is(err, ErrNothingToDraw))
	_, err = os.Stat(bad)
	assert.True(t, os.IsNotExist(err))
}
