package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/service-area/internal/spatial"
)

// StoreCounts tracks how many store records survived each stage.
type StoreCounts struct {
	Loaded              int `yaml:"loaded"`
	Filtered            int `yaml:"filtered"`
	MissingGeoreference int `yaml:"missing_georeference"`
	Unparseable         int `yaml:"unparseable"`
	Located             int `yaml:"located"`
}

// DistanceStats summarizes nearest-store distances in target units.
type DistanceStats struct {
	Min  float64 `yaml:"min"`
	Mean float64 `yaml:"mean"`
	Max  float64 `yaml:"max"`
	Unit string  `yaml:"unit"`
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID     string        `yaml:"run_id"`
	Region    string        `yaml:"region"`
	Output    string        `yaml:"output"`
	Stores    StoreCounts   `yaml:"stores"`
	Tracts    int           `yaml:"tracts"`
	TopGroups []GroupCount  `yaml:"top_groups"`
	Merge     Summary       `yaml:"merge"`
	Distance  DistanceStats `yaml:"distance"`
}

// Distances summarizes the distance of every joined row.
func Distances(joined []spatial.Joined, unit string) DistanceStats {
	if len(joined) == 0 {
		return DistanceStats{Unit: unit}
	}
	s := DistanceStats{Min: math.Inf(1), Max: math.Inf(-1), Unit: unit}
	var sum float64
	for _, j := range joined {
		s.Min = min(s.Min, j.Distance)
		s.Max = max(s.Max, j.Distance)
		sum += j.Distance
	}
	s.Mean = sum / float64(len(joined))
	return s
}

// WriteText writes a human-readable report.
func WriteText(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Region:\t%s\n", r.Region)
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", r.Output)
	_, _ = fmt.Fprintf(w, "Stores loaded:\t%s\n", humanize.Comma(int64(r.Stores.Loaded)))
	_, _ = fmt.Fprintf(w, "Stores kept:\t%s\n", humanize.Comma(int64(r.Stores.Located)))
	if r.Stores.MissingGeoreference > 0 {
		_, _ = fmt.Fprintf(w, "  No georeference:\t%d\n", r.Stores.MissingGeoreference)
	}
	if r.Stores.Unparseable > 0 {
		_, _ = fmt.Fprintf(w, "  Unparseable:\t%d\n", r.Stores.Unparseable)
	}
	_, _ = fmt.Fprintf(w, "Tracts:\t%s\n", humanize.Comma(int64(r.Tracts)))
	_, _ = fmt.Fprintf(w, "Distance (%s):\tmin %.1f  mean %.1f  max %.1f\n",
		r.Distance.Unit, r.Distance.Min, r.Distance.Mean, r.Distance.Max)
	_, _ = fmt.Fprintf(w, "Merge:\tmatched %d  left_only %d  right_only %d\n",
		r.Merge.Matched, r.Merge.LeftOnly, r.Merge.RightOnly)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "RANK\tDBA NAME\tSTREET NUMBER\tSTREET NAME\tTRACTS")
	_, _ = fmt.Fprintln(w, "----\t--------\t-------------\t-----------\t------")
	for i, g := range r.TopGroups {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", i+1, g.Key.Name, g.Key.StreetNumber, g.Key.StreetName, g.Count)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: write text")
	}
	return nil
}

// WriteYAML writes the report as a YAML document.
func WriteYAML(out io.Writer, r *Report) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "report: close yaml encoder")
	}
	return nil
}

// Write renders r in the named format: "text" or "yaml".
func Write(out io.Writer, r *Report, format string) error {
	switch format {
	case "", "text":
		return WriteText(out, r)
	case "yaml":
		return WriteYAML(out, r)
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}
