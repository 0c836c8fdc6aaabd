package gpkg

import (
	"bytes"
	"encoding/binary"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
)

// GeoPackage binary geometry header: "GP", version, flags, srs_id, envelope.
const (
	headerLen     = 8
	flagLittle    = 0x01
	flagEnvXY     = 0x02 // envelope indicator 1 in bits 1-3
	flagEmpty     = 0x10
	flagExtended  = 0x20
	envIndicators = 0x0e
)

var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// EncodeGeometry serialises g as a GeoPackage geometry blob. Points are
// written without an envelope, everything else carries an XY envelope.
func EncodeGeometry(g geom.T, srid int) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	flags := byte(flagLittle)
	var env []float64
	if g.Empty() {
		flags |= flagEmpty
	} else if _, isPoint := g.(*geom.Point); !isPoint {
		b := g.Bounds()
		env = []float64{b.Min(0), b.Max(0), b.Min(1), b.Max(1)}
		flags |= flagEnvXY
	}

	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: encode WKB")
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerLen+len(env)*8+len(body)))
	buf.Write([]byte{'G', 'P', 0, flags})
	_ = binary.Write(buf, binary.LittleEndian, int32(srid))
	for _, v := range env {
		_ = binary.Write(buf, binary.LittleEndian, v)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// DecodeGeometry parses a GeoPackage geometry blob and returns the geometry
// tagged with the header's srs_id.
func DecodeGeometry(data []byte) (geom.T, int, error) {
	if len(data) < headerLen {
		return nil, 0, eris.Errorf("gpkg: geometry blob too short (%d bytes)", len(data))
	}
	if data[0] != 'G' || data[1] != 'P' {
		return nil, 0, eris.New("gpkg: geometry blob missing GP magic")
	}
	if data[2] != 0 {
		return nil, 0, eris.Errorf("gpkg: unsupported geometry blob version %d", data[2])
	}

	flags := data[3]
	if flags&flagExtended != 0 {
		return nil, 0, eris.New("gpkg: extended geometry types are not supported")
	}

	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittle != 0 {
		order = binary.LittleEndian
	}
	srid := int(int32(order.Uint32(data[4:8])))

	indicator := int(flags&envIndicators) >> 1
	if indicator >= len(envelopeSizes) {
		return nil, 0, eris.Errorf("gpkg: invalid envelope indicator %d", indicator)
	}
	offset := headerLen + envelopeSizes[indicator]
	if len(data) < offset {
		return nil, 0, eris.New("gpkg: geometry blob truncated inside envelope")
	}

	g, err := wkb.Unmarshal(data[offset:])
	if err != nil {
		return nil, 0, eris.Wrap(err, "gpkg: decode WKB")
	}
	return withSRID(g, srid), srid, nil
}

func withSRID(g geom.T, srid int) geom.T {
	switch v := g.(type) {
	case *geom.Point:
		return v.SetSRID(srid)
	case *geom.MultiPoint:
		return v.SetSRID(srid)
	case *geom.LineString:
		return v.SetSRID(srid)
	case *geom.MultiLineString:
		return v.SetSRID(srid)
	case *geom.Polygon:
		return v.SetSRID(srid)
	case *geom.MultiPolygon:
		return v.SetSRID(srid)
	case *geom.GeometryCollection:
		return v.SetSRID(srid)
	}
	return g
}
