// Command rotorsim flies the controller against a rigid-body model on a
// simulated cycle counter, records a blackbox session and writes reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/config"
	"github.com/banshee-data/rotorcore/internal/monitoring"
	"github.com/banshee-data/rotorcore/internal/pid"
	"github.com/banshee-data/rotorcore/internal/plant"
	"github.com/banshee-data/rotorcore/internal/report"
	"github.com/banshee-data/rotorcore/internal/telemetry"
	"github.com/banshee-data/rotorcore/internal/version"
)

var (
	configPath = flag.String("config", "", "Tuning config JSON (defaults when empty)")
	dbPath     = flag.String("db", "blackbox.db", "Blackbox database path")
	note       = flag.String("note", "", "Note stored with the session")
	duration   = flag.Duration("duration", 3*time.Second, "Simulated flight time")
	angleMode  = flag.Bool("angle", false, "Fly in angle mode instead of acro")
	throttle   = flag.Float64("throttle", 0.4, "Constant throttle [0,1]")
	stepAxis   = flag.String("step-axis", "roll", "Axis for the stick step: roll, pitch or yaw")
	stepValue  = flag.Float64("step", 0.5, "Stick deflection [-1,1]")
	stepAt     = flag.Duration("step-at", 500*time.Millisecond, "When the stick step starts")
	release    = flag.Duration("release", 2*time.Second, "When the stick returns to centre (0 keeps it held)")
	coreCost   = flag.Uint("core-cost-us", 120, "Simulated core task cost in microseconds")
	taskCost   = flag.Uint("task-cost-us", 40, "Simulated guarded task cost in microseconds")
	jitter     = flag.Uint("jitter-us", 3, "Maximum simulated wake-up latency in microseconds")
	gyroNoise  = flag.Float64("gyro-noise", 2, "Gyro noise amplitude in deg/s")
	seed       = flag.Uint64("seed", 1, "Seed for noise and jitter")
	realtime   = flag.Bool("realtime", false, "Pace the loop against the wall clock")
	port       = flag.String("port", "", "Serial port for telemetry (disabled when empty)")
	baud       = flag.Int("baud", 115200, "Telemetry baud rate")
	reportDir  = flag.String("report", "", "Directory for PNG and HTML reports (skipped when empty)")
	quiet      = flag.Bool("quiet", false, "Mute scheduler, blackbox and migration diagnostics")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func parseAxis(name string) (pid.Axis, error) {
	for ax := pid.Axis(0); ax < pid.AxisCount; ax++ {
		if ax.String() == name {
			return ax, nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("rotorsim", version.String())
		return
	}
	log.Printf("rotorsim %s", version.String())
	if *quiet {
		monitoring.SetLogger(nil)
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}
	pidCfg, err := tuning.PIDConfig()
	if err != nil {
		log.Fatalf("Invalid controller tuning: %v", err)
	}
	schedCfg, err := tuning.SchedulerConfig()
	if err != nil {
		log.Fatalf("Invalid scheduler tuning: %v", err)
	}
	axis, err := parseAxis(*stepAxis)
	if err != nil {
		log.Fatal(err)
	}

	ctrl, err := pid.New(pidCfg)
	if err != nil {
		log.Fatalf("Failed to build controller: %v", err)
	}
	ctrl.SetAngleMode(*angleMode)

	plantCfg := plant.DefaultConfig()
	plantCfg.GyroNoiseDps = float32(*gyroNoise)
	plantCfg.Seed = *seed
	model, err := plant.New(plantCfg)
	if err != nil {
		log.Fatalf("Failed to build plant: %v", err)
	}

	db, err := blackbox.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open blackbox: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := db.NewSession(ctx, schedCfg.LoopRateHz, *angleMode, *note, tuning)
	if err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	rec := db.NewRecorder(session.ID, blackbox.DefaultBatchSize)

	var link samplePublisher
	if *port != "" {
		l, err := telemetry.Open(*port, telemetry.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("Failed to open telemetry: %v", err)
		}
		defer l.Close()
		id, lines := l.Subscribe()
		defer l.Unsubscribe(id)
		go func() {
			for line := range lines {
				log.Printf("ground station: %s", line)
			}
		}()
		go func() {
			if err := l.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("telemetry monitor stopped: %v", err)
			}
		}()
		link = l
	}

	sim, err := newSimulator(simConfig{
		Duration: *duration,
		Sticks: stickStep{
			Throttle: float32(*throttle),
			Axis:     axis,
			Value:    float32(*stepValue),
			At:       *stepAt,
			Release:  *release,
		},
		CoreCostUs:        uint32(*coreCost),
		TaskCostUs:        uint32(*taskCost),
		JitterUs:          uint32(*jitter),
		Seed:              *seed,
		Realtime:          *realtime,
		BlackboxPeriodUs:  durationUs(tuning.GetBlackboxInterval()),
		TelemetryPeriodUs: durationUs(tuning.GetTelemetryInterval()),
	}, ctrl, model, schedCfg, rec, link)
	if err != nil {
		log.Fatalf("Failed to build simulator: %v", err)
	}

	log.Printf("session %s: flying %v at %.0f Hz (angle=%v)", session.ID, *duration, schedCfg.LoopRateHz, *angleMode)
	runErr := sim.run(ctx)
	if err := rec.Flush(context.Background()); err != nil {
		log.Fatalf("Failed to flush blackbox: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Simulation failed: %v", runErr)
	}

	stats := sim.runner.Scheduler().Stats()
	log.Printf("ticks=%d skipped=%d guarded runs=%d deferrals=%d loop start=%d cycles task guard=%d cycles",
		stats.Ticks, stats.SkippedTicks, stats.GuardedRuns, stats.GuardedDeferrals,
		stats.LoopStart.CurrentCycles, stats.TaskGuard.CurrentCycles)
	for _, ts := range sim.runner.TaskStats() {
		log.Printf("task %s: runs=%d deferrals=%d", ts.Name, ts.Runs, ts.Deferrals)
	}

	frames, err := db.Frames(context.Background(), session.ID)
	if err != nil {
		log.Fatalf("Failed to read frames: %v", err)
	}
	summary := blackbox.Summarize(frames, pidCfg.OutputLimit)
	if err := blackbox.WriteSummary(os.Stdout, "session "+session.ID, summary); err != nil {
		log.Printf("failed to print summary: %v", err)
	}

	if *reportDir != "" {
		if err := writeReports(*reportDir, session.ID, frames); err != nil {
			log.Fatalf("Failed to write reports: %v", err)
		}
		log.Printf("reports written to %s", *reportDir)
	}
}

func durationUs(d time.Duration) uint32 {
	return uint32(d / time.Microsecond)
}

func writeReports(dir, sessionID string, frames []blackbox.Frame) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if _, err := report.WriteStepResponsePNGs(dir, sessionID, frames, report.DefaultMaxPoints); err != nil {
		return err
	}
	_, err := report.WriteHTMLFile(dir, "session", "session "+sessionID, frames, report.DefaultMaxPoints)
	return err
}
