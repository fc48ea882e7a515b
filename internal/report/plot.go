// Package report renders blackbox sessions as PNG step-response plots and
// an HTML chart page.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/pid"
)

var (
	setpointColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 255}
	gyroColor     = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 255}
	outputColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 255}
)

// DefaultMaxPoints caps the number of samples drawn per series.
const DefaultMaxPoints = 2000

// stride returns the decimation step that keeps n samples under max.
func stride(n, max int) int {
	if max <= 0 {
		max = DefaultMaxPoints
	}
	if n <= max {
		return 1
	}
	return (n + max - 1) / max
}

func seconds(f blackbox.Frame, t0 uint64) float64 {
	return float64(f.TimeUs-t0) / 1e6
}

// WriteStepResponsePNGs writes one PNG per axis into dir, plotting setpoint
// against measured rate with the controller output on a second plot. It
// returns the files written.
func WriteStepResponsePNGs(dir, title string, frames []blackbox.Frame, maxPoints int) ([]string, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to plot")
	}
	step := stride(len(frames), maxPoints)
	t0 := frames[0].TimeUs

	var files []string
	for ax := pid.Axis(0); ax < pid.AxisCount; ax++ {
		sp := make(plotter.XYs, 0, len(frames)/step+1)
		gyro := make(plotter.XYs, 0, len(frames)/step+1)
		out := make(plotter.XYs, 0, len(frames)/step+1)
		for i := 0; i < len(frames); i += step {
			f := frames[i]
			x := seconds(f, t0)
			sp = append(sp, plotter.XY{X: x, Y: float64(f.Setpoint[ax])})
			gyro = append(gyro, plotter.XY{X: x, Y: float64(f.Gyro[ax])})
			out = append(out, plotter.XY{X: x, Y: float64(f.Output[ax])})
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s - %s rate", title, ax)
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = "Rate (deg/s)"
		if err := addLine(p, "setpoint", sp, setpointColor); err != nil {
			return files, err
		}
		if err := addLine(p, "gyro", gyro, gyroColor); err != nil {
			return files, err
		}
		p.Add(plotter.NewGrid())

		file := filepath.Join(dir, fmt.Sprintf("%s_rate.png", ax))
		if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", file, err)
		}
		files = append(files, file)

		po := plot.New()
		po.Title.Text = fmt.Sprintf("%s - %s output", title, ax)
		po.X.Label.Text = "Time (s)"
		po.Y.Label.Text = "Output"
		if err := addLine(po, "output", out, outputColor); err != nil {
			return files, err
		}
		po.Add(plotter.NewGrid())

		file = filepath.Join(dir, fmt.Sprintf("%s_output.png", ax))
		if err := po.Save(14*vg.Inch, 4*vg.Inch, file); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", file, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
