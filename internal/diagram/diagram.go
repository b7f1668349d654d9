// Package diagram renders per-group time series as PNG images with gonum/plot.
package diagram

import (
	"Go2NetPeriod/internal/model"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrEmptySeries is returned when a series has no points or mismatched axes.
var ErrEmptySeries = errors.New("empty series")

// Prepare creates the output directory. Call it once before constructing a sink.
func Prepare(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create diagram directory: %w", err)
	}
	return nil
}

var nameReplacer = strings.NewReplacer("/", "_", `\`, "_", " ", "_", ":", "-")

// FileName returns the image file name of a series:
//
//	<label>(<start>-<end>)_<peer>_<direction>[_<state>]_<kind>(<proto>).png
func FileName(key model.SeriesKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(%d-%d)_%s_%s", key.Period.Label, key.Period.Start, key.Period.End, key.Peer, key.Direction)
	if key.State != model.StateUnspecified {
		b.WriteString("_" + key.State.String())
	}
	fmt.Fprintf(&b, "_%s(%s).png", key.Kind, key.Protocol)
	return nameReplacer.Replace(b.String())
}

// PNGSink implements model.DiagramSink by saving one PNG per series into a directory.
type PNGSink struct {
	dir           string
	width, height vg.Length
}

// NewPNGSink returns a sink writing into dir, which must already exist.
func NewPNGSink(dir string) (*PNGSink, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open diagram directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("diagram path %s is not a directory", dir)
	}
	return &PNGSink{dir: dir, width: 6 * vg.Inch, height: 4 * vg.Inch}, nil
}

// Path returns where the sink stores the image of key.
func (s *PNGSink) Path(key model.SeriesKey) string {
	return filepath.Join(s.dir, FileName(key))
}

// Plot draws the series as a dashed line with cross markers and saves it.
func (s *PNGSink) Plot(series model.Series) error {
	if len(series.X) == 0 || len(series.X) != len(series.Y) {
		return fmt.Errorf("%w: %s has %d x and %d y values", ErrEmptySeries, FileName(series.Key), len(series.X), len(series.Y))
	}

	p := plot.New()
	p.Title.Text = series.Title
	p.X.Label.Text = series.XLabel
	p.Y.Label.Text = series.YLabel

	pts := make(plotter.XYs, len(series.X))
	for i := range series.X {
		pts[i].X = series.X[i]
		pts[i].Y = series.Y[i]
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("failed to build plot: %w", err)
	}
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	points.GlyphStyle.Shape = draw.CrossGlyph{}
	points.GlyphStyle.Color = color.Black
	p.Add(line, points)

	path := s.Path(series.Key)
	if err := p.Save(s.width, s.height, path); err != nil {
		return fmt.Errorf("failed to save diagram %s: %w", path, err)
	}
	log.Debugf("Saved diagram %s", path)
	return nil
}
