package plot

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/rs/zerolog"

	utilsio "github.com/onflow/consensus-bench/utils/io"
)

var gnuplotScript = template.Must(template.New("gnuplot").Parse(`set terminal {{.Terminal}} size 800,600
set output "{{.Output}}"
set title "{{.Title}}"
set xlabel "{{.XLabel}}"
set ylabel "{{.YLabel}}"
set key top left
set grid
plot {{range $i, $c := .Curves}}{{if $i}}, \
     {{end}}"{{$.Data}}" index {{$i}} using 1:2:3 with yerrorlines title "{{$c.Label}}"{{end}}
`))

var terminals = map[string]string{
	"png": "pngcairo",
	"svg": "svg",
	"pdf": "pdfcairo",
}

type scriptParams struct {
	*Figure
	Terminal string
	Output   string
	Data     string
}

// GnuplotRenderer writes a data file and a gnuplot script per figure and runs
// gnuplot on them when it is installed. Without gnuplot the script is the
// artifact, so it can be rendered on another machine.
type GnuplotRenderer struct {
	log     zerolog.Logger
	dir     string
	format  string
	gnuplot string // empty if gnuplot is not installed
}

func NewGnuplotRenderer(log zerolog.Logger, dir string, format string) (*GnuplotRenderer, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}
	r := &GnuplotRenderer{
		log:    log.With().Str("component", "gnuplot_renderer").Logger(),
		dir:    dir,
		format: format,
	}
	path, err := exec.LookPath("gnuplot")
	if err != nil {
		r.log.Warn().Err(err).Msg("could not find gnuplot, only writing plot scripts")
	} else {
		r.gnuplot = path
	}
	return r, nil
}

func (r *GnuplotRenderer) Render(fig *Figure) (string, error) {
	data := filepath.Join(r.dir, fig.Name+".dat")
	script := filepath.Join(r.dir, fig.Name+".gp")
	output := fig.Name + "." + r.format

	err := utilsio.WriteFileAtomic(data, func(w io.Writer) error {
		return writeData(w, fig)
	})
	if err != nil {
		return "", err
	}

	params := scriptParams{
		Figure:   fig,
		Terminal: terminals[r.format],
		Output:   output,
		Data:     fig.Name + ".dat",
	}
	err = utilsio.WriteFileAtomic(script, func(w io.Writer) error {
		return gnuplotScript.Execute(w, params)
	})
	if err != nil {
		return "", err
	}

	if r.gnuplot == "" {
		return script, nil
	}
	cmd := exec.Command(r.gnuplot, filepath.Base(script))
	cmd.Dir = r.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gnuplot failed on %s: %w: %s", script, err, out)
	}
	return filepath.Join(r.dir, output), nil
}

// writeData writes one gnuplot data block per curve. Blocks are separated by
// two blank lines so the script can address them with "index".
func writeData(w io.Writer, fig *Figure) error {
	bw := bufio.NewWriter(w)
	for i, curve := range fig.Curves {
		if i > 0 {
			fmt.Fprint(bw, "\n\n")
		}
		fmt.Fprintf(bw, "# %s\n", curve.Label)
		for _, p := range curve.Points {
			fmt.Fprintf(bw, "%g %g %g\n", p.X, p.Y, p.YErr)
		}
	}
	return bw.Flush()
}
