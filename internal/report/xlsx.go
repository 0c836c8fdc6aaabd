package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names written by WriteXLSX.
const (
	SheetTopGroups = "Top Groups"
	SheetSummary   = "Summary"
)

// WriteXLSX saves the ranked groups and the run summary as a workbook.
func WriteXLSX(path string, r *Report) error {
	f := xlsx.NewFile()

	groups, err := f.AddSheet(SheetTopGroups)
	if err != nil {
		return eris.Wrap(err, "xlsx: add groups sheet")
	}
	addStrings(groups, "Rank", "DBA Name", "Street Number", "Street Name", "Tracts")
	for i, g := range r.TopGroups {
		row := groups.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(g.Key.Name)
		row.AddCell().SetString(g.Key.StreetNumber)
		row.AddCell().SetString(g.Key.StreetName)
		row.AddCell().SetInt(g.Count)
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStrings(summary, "Metric", "Value")
	for _, kv := range []struct {
		name  string
		value float64
	}{
		{"stores_loaded", float64(r.Stores.Loaded)},
		{"stores_filtered", float64(r.Stores.Filtered)},
		{"stores_missing_georeference", float64(r.Stores.MissingGeoreference)},
		{"stores_unparseable", float64(r.Stores.Unparseable)},
		{"stores_located", float64(r.Stores.Located)},
		{"tracts", float64(r.Tracts)},
		{"merge_matched", float64(r.Merge.Matched)},
		{"merge_left_only", float64(r.Merge.LeftOnly)},
		{"merge_right_only", float64(r.Merge.RightOnly)},
		{"distance_min", r.Distance.Min},
		{"distance_mean", r.Distance.Mean},
		{"distance_max", r.Distance.Max},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.name)
		row.AddCell().SetFloat(kv.value)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
