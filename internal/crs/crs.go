// Package crs parses point geometries and moves coordinates between the
// geographic and UTM reference systems used by the analysis.
package crs

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Well-known SRIDs.
const (
	WGS84 = 4326
	NAD83 = 4269
)

// ErrUnsupportedCRS is returned for SRIDs outside the supported registry.
var ErrUnsupportedCRS = eris.New("crs: unsupported reference system")

// Ellipsoid describes a reference ellipsoid by semi-major axis and flattening.
type Ellipsoid struct {
	Name          string
	SemiMajor     float64
	InvFlattening float64
}

// Flattening returns f.
func (e Ellipsoid) Flattening() float64 { return 1 / e.InvFlattening }

var (
	wgs84Ellipsoid = Ellipsoid{Name: "WGS 84", SemiMajor: 6378137, InvFlattening: 298.257223563}
	grs80Ellipsoid = Ellipsoid{Name: "GRS 1980", SemiMajor: 6378137, InvFlattening: 298.257222101}
)

// System is a coordinate reference system known to the registry.
type System struct {
	SRID      int
	Name      string
	Datum     string
	Ellipsoid Ellipsoid
	Projected bool
	Zone      int  // UTM zone, projected systems only
	South     bool // southern hemisphere false northing
}

// CentralMeridian returns the UTM zone's central meridian in degrees.
func (s System) CentralMeridian() float64 {
	return float64(s.Zone)*6 - 183
}

// Unit returns the linear or angular unit of the system's coordinates.
func (s System) Unit() string {
	if s.Projected {
		return "metre"
	}
	return "degree"
}

// Lookup resolves an EPSG code. Supported: 4326, 4269, 32601-32660,
// 32701-32760 and 26901-26923.
func Lookup(srid int) (System, error) {
	switch {
	case srid == WGS84:
		return System{SRID: srid, Name: "WGS 84", Datum: "WGS_1984", Ellipsoid: wgs84Ellipsoid}, nil
	case srid == NAD83:
		return System{SRID: srid, Name: "NAD83", Datum: "North_American_Datum_1983", Ellipsoid: grs80Ellipsoid}, nil
	case srid >= 32601 && srid <= 32660:
		zone := srid - 32600
		return System{
			SRID: srid, Name: fmt.Sprintf("WGS 84 / UTM zone %dN", zone), Datum: "WGS_1984",
			Ellipsoid: wgs84Ellipsoid, Projected: true, Zone: zone,
		}, nil
	case srid >= 32701 && srid <= 32760:
		zone := srid - 32700
		return System{
			SRID: srid, Name: fmt.Sprintf("WGS 84 / UTM zone %dS", zone), Datum: "WGS_1984",
			Ellipsoid: wgs84Ellipsoid, Projected: true, Zone: zone, South: true,
		}, nil
	case srid >= 26901 && srid <= 26923:
		zone := srid - 26900
		return System{
			SRID: srid, Name: fmt.Sprintf("NAD83 / UTM zone %dN", zone), Datum: "North_American_Datum_1983",
			Ellipsoid: grs80Ellipsoid, Projected: true, Zone: zone,
		}, nil
	}
	return System{}, eris.Wrapf(ErrUnsupportedCRS, "crs: srid %d", srid)
}

// IsProjected reports whether srid is a supported projected system.
func IsProjected(srid int) bool {
	s, err := Lookup(srid)
	return err == nil && s.Projected
}

// WKT returns the OGC WKT definition stored alongside layers in a GeoPackage.
func (s System) WKT() string {
	geog := s.geogcs()
	if !s.Projected {
		return fmt.Sprintf(`%s,AUTHORITY["EPSG","%d"]]`, geog[:len(geog)-1], s.SRID)
	}
	northing := 0
	if s.South {
		northing = falseNorthingSouth
	}
	return fmt.Sprintf(`PROJCS["%s",%s,PROJECTION["Transverse_Mercator"],`+
		`PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",%g],`+
		`PARAMETER["scale_factor",%g],PARAMETER["false_easting",%d],PARAMETER["false_northing",%d],`+
		`UNIT["metre",1],AXIS["Easting",EAST],AXIS["Northing",NORTH],AUTHORITY["EPSG","%d"]]`,
		s.Name, geog, s.CentralMeridian(), utmScale, falseEasting, northing, s.SRID)
}

func (s System) geogcs() string {
	name := "WGS 84"
	if s.Datum != "WGS_1984" {
		name = "NAD83"
	}
	return fmt.Sprintf(`GEOGCS["%s",DATUM["%s",SPHEROID["%s",%.0f,%.9f]],`+
		`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`,
		name, s.Datum, s.Ellipsoid.Name, s.Ellipsoid.SemiMajor, s.Ellipsoid.InvFlattening)
}
