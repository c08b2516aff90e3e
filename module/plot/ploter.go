package plot

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/consensus-bench/model/bench"
	"github.com/onflow/consensus-bench/module"
)

const (
	KindTPS     = "tps"
	KindLatency = "latency"
)

// Point is a point of a curve with a symmetric error bar.
type Point struct {
	X    float64
	Y    float64
	YErr float64
}

// Curve is one series of a figure.
type Curve struct {
	Label  string
	Points []Point
}

// Figure is a backend independent description of a plot.
type Figure struct {
	Name   string // artifact name without extension, e.g. tps-committee_size
	Title  string
	XLabel string
	YLabel string
	Curves []Curve
}

// Renderer writes a figure to an artifact and returns the artifact's path.
type Renderer interface {
	Render(fig *Figure) (string, error)
}

// ArtifactName is the name of the artifact of a figure kind, which encodes the
// varied parameter.
func ArtifactName(kind string, param bench.Parameter) string {
	return fmt.Sprintf("%s-%s", kind, param)
}

// TPSFigure builds the throughput figure of the result set along param.
func TPSFigure(param bench.Parameter, set *ResultSet) (*Figure, error) {
	series, err := set.Group(param)
	if err != nil {
		return nil, err
	}
	fig := &Figure{
		Name:   ArtifactName(KindTPS, param),
		Title:  fmt.Sprintf("Throughput by %s", param.Label()),
		XLabel: param.Label(),
		YLabel: fmt.Sprintf("Throughput (%s)", set.Units.Throughput),
	}
	for _, s := range series {
		curve := Curve{Label: s.Label()}
		for _, p := range s.Points {
			curve.Points = append(curve.Points, Point{
				X:    float64(p.Value),
				Y:    p.Result.TPSMean,
				YErr: p.Result.TPSStdev,
			})
		}
		fig.Curves = append(fig.Curves, curve)
	}
	return fig, nil
}

// LatencyFigure builds the latency figure of the result set along param.
// Results without a measured latency are left out.
//
// Expected errors:
//   - bench.PlotError if fewer than two distinct values of param have a latency
func LatencyFigure(param bench.Parameter, set *ResultSet) (*Figure, error) {
	series, err := set.Group(param)
	if err != nil {
		return nil, err
	}
	fig := &Figure{
		Name:   ArtifactName(KindLatency, param),
		Title:  fmt.Sprintf("Latency by %s", param.Label()),
		XLabel: param.Label(),
		YLabel: fmt.Sprintf("Latency (%s)", set.Units.Latency),
	}
	values := make(map[uint64]struct{})
	for _, s := range series {
		curve := Curve{Label: s.Label()}
		for _, p := range s.Points {
			if !p.Result.HasLatency() {
				continue
			}
			values[p.Value] = struct{}{}
			curve.Points = append(curve.Points, Point{
				X:    float64(p.Value),
				Y:    p.Result.LatencyMean,
				YErr: p.Result.LatencyStdev,
			})
		}
		if len(curve.Points) > 0 {
			fig.Curves = append(fig.Curves, curve)
		}
	}
	if len(values) < 2 {
		return nil, bench.NewPlotErrorf("cannot compare latency by %s: found %d value(s) with a measured latency, need at least 2", param, len(values))
	}
	return fig, nil
}

// Ploter renders comparison figures of a result set.
type Ploter struct {
	log      zerolog.Logger
	metrics  module.AggregationMetrics
	renderer Renderer
}

func NewPloter(log zerolog.Logger, metrics module.AggregationMetrics, renderer Renderer) *Ploter {
	return &Ploter{
		log:      log.With().Str("component", "ploter").Logger(),
		metrics:  metrics,
		renderer: renderer,
	}
}

// PlotTPS renders throughput against param and returns the artifact path.
func (p *Ploter) PlotTPS(param bench.Parameter, set *ResultSet) (string, error) {
	fig, err := TPSFigure(param, set)
	if err != nil {
		return "", err
	}
	return p.render(KindTPS, fig)
}

// PlotLatency renders latency against param and returns the artifact path.
func (p *Ploter) PlotLatency(param bench.Parameter, set *ResultSet) (string, error) {
	fig, err := LatencyFigure(param, set)
	if err != nil {
		return "", err
	}
	return p.render(KindLatency, fig)
}

func (p *Ploter) render(kind string, fig *Figure) (string, error) {
	path, err := p.renderer.Render(fig)
	if err != nil {
		return "", fmt.Errorf("could not render %s: %w", fig.Name, err)
	}
	p.metrics.FigureRendered(kind)
	p.log.Info().Str("figure", fig.Name).Int("curves", len(fig.Curves)).Str("path", path).Msg("rendered figure")
	return path, nil
}
