package analysis

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/service-area/internal/layer"
	"github.com/sells-group/service-area/internal/render"
)

type plotInputs struct {
	county, city, stores, tracts *layer.Layer
	distance                     map[int64]float64
	label                        string
}

// writePlots renders the overview and distance maps into dir.
func writePlots(dir string, in plotInputs) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "analysis: create plots dir %s", dir)
	}

	overview := plotPath(dir, OverviewPlot)
	if err := render.WriteFile(overview, func(w io.Writer) error {
		return render.Overview(w, in.county, in.city, in.stores)
	}); err != nil {
		return nil, err
	}

	distance := plotPath(dir, DistancePlot)
	if err := render.WriteFile(distance, func(w io.Writer) error {
		return render.Choropleth(w, in.tracts, in.distance, in.stores, in.label)
	}); err != nil {
		return nil, err
	}
	return []string{overview, distance}, nil
}

func plotPath(dir, name string) string { return filepath.Join(dir, name) }
