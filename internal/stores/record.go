// Package stores loads retail store records, narrows them to the qualifying
// chains and turns their georeferences into projected points.
package stores

import (
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/service-area/internal/layer"
)

// Header names used by the retail food store extract.
const (
	ColumnCounty       = "County"
	ColumnDBAName      = "DBA Name"
	ColumnStreetNumber = "Street Number"
	ColumnStreetName   = "Street Name"
	ColumnGeoreference = "Georeference"
)

// RequiredColumns must be present in every input file.
var RequiredColumns = []string{
	ColumnDBAName,
	ColumnStreetNumber,
	ColumnStreetName,
	ColumnCounty,
	ColumnGeoreference,
}

// Record is one row of the store extract. Optional columns decode to "" when
// the file does not carry them.
type Record struct {
	County            string `csv:"County"`
	LicenseNumber     string `csv:"License Number,omitempty"`
	OperationType     string `csv:"Operation Type,omitempty"`
	EstablishmentType string `csv:"Establishment Type,omitempty"`
	EntityName        string `csv:"Entity Name,omitempty"`
	DBAName           string `csv:"DBA Name"`
	StreetNumber      string `csv:"Street Number"`
	StreetName        string `csv:"Street Name"`
	AddressLine2      string `csv:"Address Line 2,omitempty"`
	AddressLine3      string `csv:"Address Line 3,omitempty"`
	City              string `csv:"City,omitempty"`
	State             string `csv:"State,omitempty"`
	ZipCode           string `csv:"Zip Code,omitempty"`
	SquareFootage     string `csv:"Square Footage,omitempty"`
	Georeference      string `csv:"Georeference"`
}

// Attributes returns the record's columns keyed by header name, without the
// georeference (it becomes the geometry).
func (r Record) Attributes() map[string]any {
	return map[string]any{
		"County":             r.County,
		"License Number":     r.LicenseNumber,
		"Operation Type":     r.OperationType,
		"Establishment Type": r.EstablishmentType,
		"Entity Name":        r.EntityName,
		"DBA Name":           r.DBAName,
		"Street Number":      r.StreetNumber,
		"Street Name":        r.StreetName,
		"Address Line 2":     r.AddressLine2,
		"Address Line 3":     r.AddressLine3,
		"City":               r.City,
		"State":              r.State,
		"Zip Code":           r.ZipCode,
		"Square Footage":     r.SquareFootage,
	}
}

// AttributeColumns returns the store layer schema in file header order.
func AttributeColumns() ([]layer.Column, error) {
	header, err := csvutil.Header(Record{}, "csv")
	if err != nil {
		return nil, eris.Wrap(err, "stores: record header")
	}
	cols := make([]layer.Column, 0, len(header))
	for _, h := range header {
		if h == ColumnGeoreference {
			continue
		}
		cols = append(cols, layer.Column{Name: h, Type: layer.TypeText})
	}
	return cols, nil
}
