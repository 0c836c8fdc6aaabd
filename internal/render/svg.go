// Package render draws analysis layers as SVG maps.
package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/service-area/internal/layer"
)

// ErrNothingToDraw is returned when every layer is empty.
var ErrNothingToDraw = eris.New("render: no geometry to draw")

// Style is the paint used for one layer.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Radius      float64
	Opacity     float64
}

const (
	defaultWidth = 800
	margin       = 20
)

// canvas maps layer coordinates onto an SVG viewport with y pointing down.
type canvas struct {
	w     *bufio.Writer
	minX  float64
	maxY  float64
	scale float64
	width int
	hgt   int
}

func newCanvas(out io.Writer, width int, layers ...*layer.Layer) (*canvas, error) {
	var b *geom.Bounds
	srid := 0
	for _, l := range layers {
		if l == nil {
			continue
		}
		if srid != 0 && l.SRID != srid {
			return nil, eris.Errorf("render: layer %s is srid %d, expected %d", l.Name, l.SRID, srid)
		}
		srid = l.SRID
		lb, ok := l.Envelope()
		if !ok {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(lb.Polygon())
	}
	if b == nil {
		return nil, ErrNothingToDraw
	}
	if width <= 0 {
		width = defaultWidth
	}

	dx := b.Max(0) - b.Min(0)
	dy := b.Max(1) - b.Min(1)
	inner := float64(width - 2*margin)
	scale := 1.0
	switch {
	case dx > 0 && dy > 0:
		scale = inner / max(dx, dy)
	case dx > 0:
		scale = inner / dx
	case dy > 0:
		scale = inner / dy
	}

	c := &canvas{
		w:     bufio.NewWriter(out),
		minX:  b.Min(0),
		maxY:  b.Max(1),
		scale: scale,
		width: int(dx*scale) + 2*margin,
		hgt:   int(dy*scale) + 2*margin,
	}
	return c, nil
}

func (c *canvas) px(x, y float64) (float64, float64) {
	return (x-c.minX)*c.scale + margin, (c.maxY-y)*c.scale + margin
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (c *canvas) open(title string, legendSpace int) {
	fmt.Fprintf(c.w, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		c.width+legendSpace, c.hgt, c.width+legendSpace, c.hgt)
	c.w.WriteString("<title>")
	_ = xml.EscapeText(c.w, []byte(title))
	c.w.WriteString("</title>\n")
	fmt.Fprintf(c.w, `<rect width="100%%" height="100%%" fill="white"/>`+"\n")
}

func (c *canvas) close() error {
	c.w.WriteString("</svg>\n")
	if err := c.w.Flush(); err != nil {
		return eris.Wrap(err, "render: flush svg")
	}
	return nil
}

func (s Style) attrs() string {
	var b strings.Builder
	fill := s.Fill
	if fill == "" {
		fill = "none"
	}
	fmt.Fprintf(&b, ` fill="%s"`, fill)
	if s.Stroke != "" {
		fmt.Fprintf(&b, ` stroke="%s" stroke-width="%s"`, s.Stroke, num(s.StrokeWidth))
	}
	if s.Opacity > 0 && s.Opacity < 1 {
		fmt.Fprintf(&b, ` opacity="%s"`, num(s.Opacity))
	}
	return b.String()
}

// drawLayer paints every row of l with the style returned by styleOf.
func (c *canvas) drawLayer(l *layer.Layer, styleOf func(layer.Row) Style) {
	if l == nil {
		return
	}
	fmt.Fprintf(c.w, `<g id="%s">`+"\n", xmlAttr(l.Name))
	for _, r := range l.Rows {
		if r.Geom == nil || r.Geom.Empty() {
			continue
		}
		c.drawGeom(r.Geom, styleOf(r))
	}
	c.w.WriteString("</g>\n")
}

func (c *canvas) drawGeom(g geom.T, s Style) {
	switch t := g.(type) {
	case *geom.Point:
		x, y := c.px(t.X(), t.Y())
		r := s.Radius
		if r <= 0 {
			r = 3
		}
		fmt.Fprintf(c.w, `<circle cx="%s" cy="%s" r="%s"%s/>`+"\n", num(x), num(y), num(r), s.attrs())
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			c.drawGeom(t.Point(i), s)
		}
	case *geom.LineString:
		fmt.Fprintf(c.w, `<path d="%s"%s/>`+"\n", c.pathData(t.FlatCoords(), t.Stride(), false), s.attrs())
	case *geom.MultiLineString:
		var d strings.Builder
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			d.WriteString(c.pathData(ls.FlatCoords(), ls.Stride(), false))
		}
		fmt.Fprintf(c.w, `<path d="%s"%s/>`+"\n", d.String(), s.attrs())
	case *geom.Polygon:
		fmt.Fprintf(c.w, `<path fill-rule="evenodd" d="%s"%s/>`+"\n", c.polygonData(t), s.attrs())
	case *geom.MultiPolygon:
		var d strings.Builder
		for i := 0; i < t.NumPolygons(); i++ {
			d.WriteString(c.polygonData(t.Polygon(i)))
		}
		fmt.Fprintf(c.w, `<path fill-rule="evenodd" d="%s"%s/>`+"\n", d.String(), s.attrs())
	}
}

func (c *canvas) polygonData(p *geom.Polygon) string {
	var d strings.Builder
	for i := 0; i < p.NumLinearRings(); i++ {
		lr := p.LinearRing(i)
		d.WriteString(c.pathData(lr.FlatCoords(), lr.Stride(), true))
	}
	return d.String()
}

func (c *canvas) pathData(flat []float64, stride int, closed bool) string {
	var d strings.Builder
	for i := 0; i+1 < len(flat); i += stride {
		x, y := c.px(flat[i], flat[i+1])
		if i == 0 {
			d.WriteString("M")
		} else {
			d.WriteString(" L")
		}
		d.WriteString(num(x))
		d.WriteString(",")
		d.WriteString(num(y))
	}
	if closed && d.Len() > 0 {
		d.WriteString(" Z")
	}
	d.WriteString(" ")
	return d.String()
}

func xmlAttr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
