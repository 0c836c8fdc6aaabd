package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/service-area/internal/analysis"
	"github.com/sells-group/service-area/internal/config"
	"github.com/sells-group/service-area/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the service-area analysis",
	Long: `Loads the store CSV and boundary package, writes the output GeoPackage
(county, city, stores, roads, tracts, centroids), prints the top served store
groups with the merge summary, and renders the overview and distance maps.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ac := cfg.Analysis
		if err := applyAnalyzeFlags(cmd, &ac); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		zap.L().Info("starting analysis",
			zap.String("command", "analyze"),
			zap.String("region", ac.Region),
			zap.Int("target_srid", ac.TargetSRID),
		)

		res, err := analysis.Run(ctx, ac)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		return report.Write(os.Stdout, res.Report, format)
	},
}

// applyAnalyzeFlags overrides config values with any flags the user set.
func applyAnalyzeFlags(cmd *cobra.Command, ac *config.AnalysisConfig) error {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"stores":     &ac.StoresPath,
		"boundaries": &ac.BoundariesPath,
		"out":        &ac.OutputPath,
		"plots":      &ac.PlotsDir,
		"xlsx":       &ac.ReportXLSX,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if flags.Changed("top") {
		top, err := flags.GetInt("top")
		if err != nil {
			return err
		}
		ac.TopN = top
	}
	if flags.Changed("workers") {
		workers, err := flags.GetInt("workers")
		if err != nil {
			return err
		}
		ac.Workers = workers
	}
	if flags.Changed("lenient") {
		ac.LenientGeometry, _ = flags.GetBool("lenient")
	}
	return nil
}

func init() {
	analyzeCmd.Flags().String("stores", "", "store CSV (default: from config)")
	analyzeCmd.Flags().String("boundaries", "", "boundary GeoPackage (default: from config)")
	analyzeCmd.Flags().String("out", "", "output GeoPackage (default: from config)")
	analyzeCmd.Flags().String("plots", "", "directory for overview.svg and distance.svg")
	analyzeCmd.Flags().String("xlsx", "", "also write the report to this workbook")
	analyzeCmd.Flags().Int("top", 10, "number of served store groups to report")
	analyzeCmd.Flags().Int("workers", 0, "nearest-store workers (default: GOMAXPROCS)")
	analyzeCmd.Flags().Bool("lenient", false, "skip unparseable georeferences and boundary features without geometry instead of failing")
	analyzeCmd.Flags().String("format", "text", "report format: text or yaml")
	rootCmd.AddCommand(analyzeCmd)
}
