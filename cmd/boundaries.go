package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/boundary"
	"github.com/sells-group/service-area/internal/crs"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage boundary packages",
}

var boundariesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Build a boundary GeoPackage from shapefiles",
	Long: `Reads TIGER/Line style shapefiles and writes each one as a layer of a new
GeoPackage, e.g.

  service-area boundaries import --out demo.gpkg \
    --layer county=tl_2020_us_county.shp --layer tracts=tl_2020_36_tract.shp`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out, _ := cmd.Flags().GetString("out")
		specs, _ := cmd.Flags().GetStringArray("layer")
		srid, _ := cmd.Flags().GetInt("srid")

		sources, err := parseSources(specs)
		if err != nil {
			return err
		}
		if _, err := crs.Lookup(srid); err != nil {
			return eris.Wrap(err, "boundaries import")
		}

		zap.L().Info("importing boundaries",
			zap.String("command", "boundaries import"),
			zap.String("out", out),
			zap.Int("layers", len(sources)),
			zap.Int("srid", srid),
		)

		infos, err := boundary.Import(ctx, out, sources, srid)
		if err != nil {
			return eris.Wrap(err, "boundaries import")
		}
		formatLayers(os.Stdout, infos)
		return nil
	},
}

func parseSources(specs []string) ([]boundary.Source, error) {
	if len(specs) == 0 {
		return nil, eris.New("boundaries import: at least one --layer name=path.shp is required")
	}
	sources := make([]boundary.Source, 0, len(specs))
	for _, s := range specs {
		src, err := boundary.ParseSource(s)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func init() {
	boundariesImportCmd.Flags().String("out", "demo.gpkg", "GeoPackage to create")
	boundariesImportCmd.Flags().StringArray("layer", nil, "layer to import as name=path.shp (repeatable)")
	boundariesImportCmd.Flags().Int("srid", crs.NAD83, "SRID of the shapefile coordinates")
	boundariesCmd.AddCommand(boundariesImportCmd)
	rootCmd.AddCommand(boundariesCmd)
}
