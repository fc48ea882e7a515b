package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/pid"
)

const assetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WriteHTML renders a page with one rate chart per axis, a timing chart,
// and the D-term cutoff.
func WriteHTML(w io.Writer, title string, frames []blackbox.Frame, maxPoints int) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to chart")
	}
	step := stride(len(frames), maxPoints)
	t0 := frames[0].TimeUs

	xs := make([]string, 0, len(frames)/step+1)
	for i := 0; i < len(frames); i += step {
		xs = append(xs, fmt.Sprintf("%.3f", seconds(frames[i], t0)))
	}
	series := func(value func(f blackbox.Frame) float32) []opts.LineData {
		data := make([]opts.LineData, 0, len(xs))
		for i := 0; i < len(frames); i += step {
			data = append(data, opts.LineData{Value: value(frames[i])})
		}
		return data
	}

	page := components.NewPage()
	page.SetAssetsHost(assetsHost)
	page.PageTitle = title

	for ax := pid.Axis(0); ax < pid.AxisCount; ax++ {
		line := newLine(fmt.Sprintf("%s rate", ax), title, "deg/s")
		line.SetXAxis(xs).
			AddSeries("setpoint", series(func(f blackbox.Frame) float32 { return f.Setpoint[ax] })).
			AddSeries("gyro", series(func(f blackbox.Frame) float32 { return f.Gyro[ax] })).
			AddSeries("output x100", series(func(f blackbox.Frame) float32 { return 100 * f.Output[ax] }))
		page.AddCharts(line)
	}

	timing := newLine("Loop start lateness", title, "cycles")
	timing.SetXAxis(xs).
		AddSeries("lateness", series(func(f blackbox.Frame) float32 { return float32(f.LatenessCycles) }))
	page.AddCharts(timing)

	cutoff := newLine("D-term cutoff", title, "Hz")
	cutoff.SetXAxis(xs).
		AddSeries("cutoff", series(func(f blackbox.Frame) float32 { return f.DtermCutoffHz })).
		AddSeries("throttle x100", series(func(f blackbox.Frame) float32 { return 100 * f.Throttle }))
	page.AddCharts(cutoff)

	return page.Render(w)
}

func newLine(name, subtitle, unit string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: assetsHost}),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	return line
}
