package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/service-area/internal/gpkg"
)

var layersCmd = &cobra.Command{
	Use:   "layers <file.gpkg>",
	Short: "List the layers of a GeoPackage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		st, err := os.Stat(path)
		if err != nil {
			return eris.Wrap(err, "layers")
		}

		store, err := gpkg.Open(path)
		if err != nil {
			return eris.Wrap(err, "layers")
		}
		defer store.Close() //nolint:errcheck

		infos, err := store.Layers(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "layers")
		}
		if len(infos) == 0 {
			fmt.Fprintln(os.Stderr, "No layers found.")
			return nil
		}

		formatLayers(os.Stdout, infos)
		fmt.Printf("\n%s, %s\n", path, humanize.Bytes(uint64(st.Size())))
		return nil
	},
}

func formatLayers(out io.Writer, infos []gpkg.Info) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LAYER\tGEOMETRY\tSRID\tFEATURES")
	_, _ = fmt.Fprintln(w, "-----\t--------\t----\t--------")
	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			info.Name,
			info.GeometryType,
			info.SRID,
			humanize.Comma(int64(info.Features)),
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(layersCmd)
}
