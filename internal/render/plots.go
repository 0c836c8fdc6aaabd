package render

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/service-area/internal/layer"
)

// Layer colors used by the overview map.
var (
	CountyStyle = Style{Fill: "#d3d3d3", Stroke: "#808080", StrokeWidth: 1}
	CityStyle   = Style{Fill: "#d2b48c", Stroke: "#8b7355", StrokeWidth: 0.5}
	StoreStyle  = Style{Fill: "#1f77b4", Stroke: "#ffffff", StrokeWidth: 0.5, Radius: 4}
	servedStyle = Style{Fill: "#d62728", Stroke: "#ffffff", StrokeWidth: 0.5, Radius: 4}
	missingFill = "#f0f0f0"
)

const legendWidth = 140

// ramp is a five-stop sequential palette from near to far.
var ramp = [][3]float64{
	{255, 255, 204},
	{161, 218, 180},
	{65, 182, 196},
	{44, 127, 184},
	{37, 52, 148},
}

// Overview draws the county, city and store layers in that order.
func Overview(out io.Writer, county, city, stores *layer.Layer) error {
	c, err := newCanvas(out, defaultWidth, county, city, stores)
	if err != nil {
		return err
	}
	c.open("Big stores", 0)
	c.drawLayer(county, func(layer.Row) Style { return CountyStyle })
	c.drawLayer(city, func(layer.Row) Style { return CityStyle })
	c.drawLayer(stores, func(layer.Row) Style { return StoreStyle })
	return c.close()
}

// Choropleth fills each tract by its value (keyed by row ID) and overlays
// the stores. Tracts without a value are drawn in a neutral color.
func Choropleth(out io.Writer, tracts *layer.Layer, values map[int64]float64, stores *layer.Layer, label string) error {
	c, err := newCanvas(out, defaultWidth, tracts, stores)
	if err != nil {
		return err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	c.open("Distance to nearest big store", legendWidth)
	c.drawLayer(tracts, func(r layer.Row) Style {
		v, ok := values[r.ID]
		if !ok {
			return Style{Fill: missingFill, Stroke: "#ffffff", StrokeWidth: 0.3}
		}
		return Style{Fill: Color(v, lo, hi), Stroke: "#ffffff", StrokeWidth: 0.3}
	})
	c.drawLayer(stores, func(layer.Row) Style { return servedStyle })
	if len(values) > 0 {
		c.legend(lo, hi, label)
	}
	return c.close()
}

// Color maps v in [lo, hi] onto the sequential ramp.
func Color(v, lo, hi float64) string {
	t := 0.0
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	t = math.Max(0, math.Min(1, t))

	pos := t * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		i = len(ramp) - 2
	}
	f := pos - float64(i)
	a, b := ramp[i], ramp[i+1]
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round(a[0]+(b[0]-a[0])*f)),
		int(math.Round(a[1]+(b[1]-a[1])*f)),
		int(math.Round(a[2]+(b[2]-a[2])*f)),
	)
}

func (c *canvas) legend(lo, hi float64, label string) {
	x := c.width + 10
	const steps, box = 5, 18
	fmt.Fprintf(c.w, `<g id="legend" font-family="sans-serif" font-size="11">`+"\n")
	fmt.Fprintf(c.w, `<text x="%d" y="%d">%s</text>`+"\n", x, margin, xmlAttr(label))
	for i := 0; i < steps; i++ {
		v := lo + (hi-lo)*float64(i)/float64(steps-1)
		y := margin + 10 + i*(box+4)
		fmt.Fprintf(c.w, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`+"\n", x, y, box, box, Color(v, lo, hi))
		fmt.Fprintf(c.w, `<text x="%d" y="%d">%.0f</text>`+"\n", x+box+6, y+box-5, v)
	}
	c.w.WriteString("</g>\n")
}

// WriteFile renders into path with draw, removing the file if drawing fails.
func WriteFile(path string, draw func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if err := draw(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return eris.Wrapf(err, "render: draw %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "render: close %s", path)
	}
	return nil
}
