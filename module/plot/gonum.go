package plot

import (
	"fmt"
	"path/filepath"

	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Formats supported by the renderers.
var Formats = []string{"png", "svg", "pdf"}

func checkFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported plot format %q (expected one of %v)", format, Formats)
}

// errorPoints adapts curve points to the gonum plotter interfaces.
type errorPoints []Point

func (e errorPoints) Len() int                    { return len(e) }
func (e errorPoints) XY(i int) (float64, float64) { return e[i].X, e[i].Y }
func (e errorPoints) YError(i int) (float64, float64) {
	return e[i].YErr, e[i].YErr
}

// GonumRenderer draws figures with gonum/plot.
type GonumRenderer struct {
	dir    string
	format string
	width  vg.Length
	height vg.Length
}

func NewGonumRenderer(dir string, format string) (*GonumRenderer, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	return &GonumRenderer{
		dir:    dir,
		format: format,
		width:  6 * vg.Inch,
		height: 4 * vg.Inch,
	}, nil
}

func (r *GonumRenderer) Render(fig *Figure) (string, error) {
	p := gonumplot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for i, curve := range fig.Curves {
		points := errorPoints(curve.Points)
		line, scatter, err := plotter.NewLinePoints(points)
		if err != nil {
			return "", fmt.Errorf("invalid curve %q: %w", curve.Label, err)
		}
		bars, err := plotter.NewYErrorBars(points)
		if err != nil {
			return "", fmt.Errorf("invalid error bars of %q: %w", curve.Label, err)
		}
		color := plotutil.Color(i)
		line.Color = color
		scatter.Color = color
		scatter.Shape = plotutil.Shape(i)
		bars.Color = color

		p.Add(line, scatter, bars)
		p.Legend.Add(curve.Label, line, scatter)
	}

	path := filepath.Join(r.dir, fig.Name+"."+r.format)
	err := p.Save(r.width, r.height, path)
	if err != nil {
		return "", fmt.Errorf("could not save %s: %w", path, err)
	}
	return path, nil
}
