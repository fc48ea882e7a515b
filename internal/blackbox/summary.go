package blackbox

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rotorcore/internal/pid"
)

// AxisSummary describes tracking on one axis.
type AxisSummary struct {
	MeanError   float64
	StdDevError float64
	RMSError    float64
	MaxAbsError float64
	// Saturation is the fraction of frames with |output| at or above the
	// saturation level passed to Summarize.
	Saturation float64
}

// Summary describes a recorded session.
type Summary struct {
	Frames int
	// DurationUs is the time between the first and the last frame.
	DurationUs uint64

	LatenessMeanCycles   float64
	LatenessStdDevCycles float64
	LatenessP99Cycles    float64
	LatenessMaxCycles    float64

	Axes [pid.AxisCount]AxisSummary
}

// Summarize computes tracking and timing statistics. saturation is the
// output magnitude counted as saturated, usually the output limit.
func Summarize(frames []Frame, saturation float32) Summary {
	s := Summary{Frames: len(frames)}
	if len(frames) == 0 {
		return s
	}
	s.DurationUs = frames[len(frames)-1].TimeUs - frames[0].TimeUs

	lateness := make([]float64, len(frames))
	for i, f := range frames {
		lateness[i] = float64(f.LatenessCycles)
	}
	s.LatenessMeanCycles, s.LatenessStdDevCycles = stat.MeanStdDev(lateness, nil)
	s.LatenessMaxCycles = floats.Max(lateness)
	sort.Float64s(lateness)
	s.LatenessP99Cycles = stat.Quantile(0.99, stat.Empirical, lateness, nil)

	errs := make([]float64, len(frames))
	for ax := range s.Axes {
		saturated := 0
		for i, f := range frames {
			errs[i] = float64(f.Setpoint[ax] - f.Gyro[ax])
			if float32(math.Abs(float64(f.Output[ax]))) >= saturation {
				saturated++
			}
		}
		a := &s.Axes[ax]
		a.MeanError, a.StdDevError = stat.MeanStdDev(errs, nil)
		a.RMSError = math.Sqrt(stat.Mean(squares(errs), nil))
		a.MaxAbsError = math.Max(math.Abs(floats.Min(errs)), math.Abs(floats.Max(errs)))
		a.Saturation = float64(saturated) / float64(len(frames))
	}
	return s
}

func squares(xs []float64) []float64 {
	out := make([]float64, len(xs))
	floats.MulTo(out, xs, xs)
	return out
}

// WriteSummary prints s as an aligned table.
func WriteSummary(w io.Writer, title string, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s: %d frames over %.3f s\n", title, s.Frames, float64(s.DurationUs)/1e6)
	fmt.Fprintf(tw, "lateness (cycles)\tmean %.1f\tstddev %.1f\tp99 %.0f\tmax %.0f\n",
		s.LatenessMeanCycles, s.LatenessStdDevCycles, s.LatenessP99Cycles, s.LatenessMaxCycles)
	fmt.Fprintln(tw, "axis\tmean err\tstddev\trms\tmax |err|\tsaturated")
	for ax, a := range s.Axes {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\n",
			pid.Axis(ax), a.MeanError, a.StdDevError, a.RMSError, a.MaxAbsError, 100*a.Saturation)
	}
	return tw.Flush()
}
