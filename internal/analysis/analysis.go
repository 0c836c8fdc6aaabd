// Package analysis runs the big-store service-area pipeline end to end.
package analysis

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/config"
	"github.com/sells-group/service-area/internal/crs"
	"github.com/sells-group/service-area/internal/gpkg"
	"github.com/sells-group/service-area/internal/layer"
	"github.com/sells-group/service-area/internal/report"
	"github.com/sells-group/service-area/internal/spatial"
	"github.com/sells-group/service-area/internal/stores"
)

// Output layer names, in write order.
const (
	LayerCounty    = "county"
	LayerCity      = "city"
	LayerStores    = "stores"
	LayerRoads     = "roads"
	LayerTracts    = "tracts"
	LayerCentroids = "centroids"
)

// Plot file names written into the plots directory.
const (
	OverviewPlot = "overview.svg"
	DistancePlot = "distance.svg"
)

// Result is everything a run produced.
type Result struct {
	Report *report.Report
	Merge  *report.MergeResult
	Layers []gpkg.Info
	Plots  []string
}

// boundaries holds the input layers as read.
type boundaries struct {
	county, city, roads, tracts *layer.Layer
}

// Run executes the pipeline described by cfg. The output package is only
// moved into place once every layer is written and the merge validates.
func Run(ctx context.Context, cfg config.AnalysisConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := crs.Lookup(cfg.TargetSRID)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: target srid")
	}

	runID := uuid.New().String()
	log := zap.L().With(zap.String("component", "analysis"), zap.String("run_id", runID))
	log.Info("analysis: starting",
		zap.String("stores", cfg.StoresPath),
		zap.String("boundaries", cfg.BoundariesPath),
		zap.String("output", cfg.OutputPath),
		zap.String("region", cfg.Region),
	)

	rep := &report.Report{RunID: runID, Region: cfg.Region, Output: cfg.OutputPath}

	storeLayer, err := loadStores(cfg, &rep.Stores)
	if err != nil {
		return nil, err
	}
	log.Info("analysis: stores located",
		zap.String("loaded", humanize.Comma(int64(rep.Stores.Loaded))),
		zap.Int("filtered", rep.Stores.Filtered),
		zap.Int("located", rep.Stores.Located),
	)

	in, err := readBoundaries(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tracts := in.tracts
	if tracts.SRID != cfg.TargetSRID {
		if tracts, err = in.tracts.Reproject(cfg.TargetSRID); err != nil {
			return nil, eris.Wrap(err, "analysis: reproject tracts")
		}
	}
	centroids, err := spatial.Centroids(tracts, LayerCentroids)
	if err != nil {
		return nil, err
	}
	rep.Tracts = tracts.Len()

	out, err := gpkg.Create(cfg.OutputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Close() }()

	for _, l := range []*layer.Layer{
		renamed(in.county, LayerCounty),
		renamed(in.city, LayerCity),
		storeLayer,
		renamed(in.roads, LayerRoads),
		renamed(in.tracts, LayerTracts),
		centroids,
	} {
		if err := out.WriteLayer(ctx, l); err != nil {
			return nil, eris.Wrapf(err, "analysis: write %s", l.Name)
		}
	}

	joined, err := spatial.JoinNearest(ctx, centroids, storeLayer, spatial.Options{Workers: cfg.Workers})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: nearest store")
	}
	rep.TopGroups = report.TopN(report.ServedGroups(joined), cfg.TopN)
	rep.Distance = report.Distances(joined, target.Unit())

	merged, err := report.MergeOneToOne(tracts.Rows, report.MatchRows(joined), cfg.JoinKey)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: merge distances onto tracts")
	}
	rep.Merge = merged.Summary

	infos, err := out.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	log.Info("analysis: output written",
		zap.String("path", cfg.OutputPath),
		zap.Int("layers", len(infos)),
		zap.Int("matched", merged.Summary.Matched),
	)

	res := &Result{Report: rep, Merge: merged, Layers: infos}

	if cfg.PlotsDir != "" {
		plots, err := drawPlots(cfg, in, storeLayer, tracts, merged, target.Unit())
		if err != nil {
			return nil, err
		}
		res.Plots = plots
	}
	if cfg.ReportXLSX != "" {
		if err := report.WriteXLSX(cfg.ReportXLSX, rep); err != nil {
			return nil, err
		}
		log.Info("analysis: report workbook written", zap.String("path", cfg.ReportXLSX))
	}
	return res, nil
}

func loadStores(cfg config.AnalysisConfig, counts *report.StoreCounts) (*layer.Layer, error) {
	records, err := stores.Load(cfg.StoresPath)
	if err != nil {
		return nil, err
	}
	counts.Loaded = len(records)

	filtered := stores.Filter(records, stores.Criteria{
		Region:           cfg.Region,
		AllowPrefixes:    cfg.ChainPrefixes,
		ExcludeSubstring: cfg.ExcludeSubstring,
	})
	counts.Filtered = len(filtered)

	kept, missing := stores.DropMissingGeoreference(filtered)
	counts.MissingGeoreference = missing
	if missing > 0 {
		zap.L().Warn("analysis: dropped stores without georeference",
			zap.String("component", "analysis"),
			zap.Int("dropped", missing),
		)
	}

	located, skipped, err := stores.ParsePoints(kept, cfg.SourceSRID, stores.ParseOptions{Lenient: cfg.LenientGeometry})
	if err != nil {
		return nil, err
	}
	counts.Unparseable = skipped

	projected, err := stores.Reproject(located, cfg.TargetSRID)
	if err != nil {
		return nil, err
	}
	counts.Located = len(projected)

	return stores.ToLayer(LayerStores, projected, cfg.TargetSRID)
}

func readBoundaries(ctx context.Context, cfg config.AnalysisConfig) (*boundaries, error) {
	src, err := gpkg.Open(cfg.BoundariesPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	var b boundaries
	for _, r := range []struct {
		name string
		dst  **layer.Layer
	}{
		{cfg.Layers.County, &b.county},
		{cfg.Layers.City, &b.city},
		{cfg.Layers.Roads, &b.roads},
		{cfg.Layers.Tracts, &b.tracts},
	} {
		l, err := src.ReadLayerWith(ctx, r.name, gpkg.ReadOptions{SkipMissingGeometry: cfg.LenientGeometry})
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: boundary layer %q", r.name)
		}
		*r.dst = l
	}
	return &b, nil
}

// renamed returns l under the output name, sharing its rows.
func renamed(l *layer.Layer, name string) *layer.Layer {
	if l.Name == name {
		return l
	}
	cp := *l
	cp.Name = name
	return &cp
}

func drawPlots(cfg config.AnalysisConfig, in *boundaries, storeLayer, tracts *layer.Layer, merged *report.MergeResult, unit string) ([]string, error) {
	county, err := inTarget(in.county, cfg.TargetSRID)
	if err != nil {
		return nil, err
	}
	city, err := inTarget(in.city, cfg.TargetSRID)
	if err != nil {
		return nil, err
	}

	values := make(map[int64]float64, len(merged.Rows))
	for _, m := range merged.Rows {
		if m.Match == nil {
			continue
		}
		if d, ok := m.Match.Attrs[report.AttrDistance].(float64); ok {
			values[m.Base.ID] = d
		}
	}

	return writePlots(cfg.PlotsDir, plotInputs{
		county:   county,
		city:     city,
		stores:   storeLayer,
		tracts:   tracts,
		distance: values,
		label:    "Distance (" + unit + ")",
	})
}

func inTarget(l *layer.Layer, srid int) (*layer.Layer, error) {
	if l.SRID == srid {
		return l, nil
	}
	out, err := l.Reproject(srid)
	if err != nil {
		return nil, eris.Wrapf(err, "analysis: reproject %s for plotting", l.Name)
	}
	return out, nil
}
