// Command blackbox lists recorded sessions and summarises one of them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/report"
	"github.com/banshee-data/rotorcore/internal/units"
	"github.com/banshee-data/rotorcore/internal/version"
)

var errNoSessions = errors.New("no sessions recorded")

type options struct {
	dbPath     string
	sessionID  string
	list       bool
	saturation float64
	reportDir  string
	rateUnits  string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("blackbox", flag.ContinueOnError)
	var o options
	fs.StringVar(&o.dbPath, "db", "blackbox.db", "Blackbox database path")
	fs.StringVar(&o.sessionID, "session", "", "Session to summarise (latest when empty)")
	fs.BoolVar(&o.list, "list", false, "List sessions and exit")
	fs.Float64Var(&o.saturation, "saturation", 1, "Output magnitude counted as saturated")
	fs.StringVar(&o.reportDir, "report", "", "Directory for PNG and HTML reports (skipped when empty)")
	fs.StringVar(&o.rateUnits, "units", units.DPS, "Units for rate errors: "+strings.Join(units.ValidRateUnits, ", "))
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.saturation <= 0 {
		return o, fmt.Errorf("saturation must be positive, got %g", o.saturation)
	}
	if !units.IsValidRateUnit(o.rateUnits) {
		return o, fmt.Errorf("invalid units %q: expected one of %s", o.rateUnits, strings.Join(units.ValidRateUnits, ", "))
	}
	return o, nil
}

func run(ctx context.Context, o options, out io.Writer) error {
	if _, err := os.Stat(o.dbPath); err != nil {
		return fmt.Errorf("blackbox database %s: %w", o.dbPath, err)
	}
	db, err := blackbox.Open(o.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.Sessions(ctx)
	if err != nil {
		return err
	}
	if o.list {
		return listSessions(out, sessions)
	}
	if len(sessions) == 0 {
		return errNoSessions
	}

	id := o.sessionID
	if id == "" {
		id = sessions[0].ID
	}
	frames, err := db.Frames(ctx, id)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("session %s has no frames", id)
	}
	summary := convertSummary(blackbox.Summarize(frames, float32(o.saturation)), o.rateUnits)
	if err := blackbox.WriteSummary(out, fmt.Sprintf("session %s (%s)", id, o.rateUnits), summary); err != nil {
		return err
	}

	if o.reportDir == "" {
		return nil
	}
	if err := os.MkdirAll(o.reportDir, 0755); err != nil {
		return err
	}
	files, err := report.WriteStepResponsePNGs(o.reportDir, id, frames, report.DefaultMaxPoints)
	if err != nil {
		return err
	}
	html, err := report.WriteHTMLFile(o.reportDir, id, "session "+id, frames, report.DefaultMaxPoints)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d plots and %s\n", len(files), html)
	return nil
}

// convertSummary rescales the rate error statistics from deg/s.
func convertSummary(s blackbox.Summary, rateUnits string) blackbox.Summary {
	for i := range s.Axes {
		a := &s.Axes[i]
		a.MeanError = units.ConvertRate(a.MeanError, rateUnits)
		a.StdDevError = units.ConvertRate(a.StdDevError, rateUnits)
		a.RMSError = units.ConvertRate(a.RMSError, rateUnits)
		a.MaxAbsError = units.ConvertRate(a.MaxAbsError, rateUnits)
	}
	return s
}

func listSessions(out io.Writer, sessions []blackbox.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tLOOP HZ\tMODE\tNOTE")
	for _, s := range sessions {
		mode := "acro"
		if s.AngleMode {
			mode = "angle"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.0f\t%s\t%s\n", s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.LoopRateHz, mode, s.Note)
	}
	return tw.Flush()
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
	log.Printf("blackbox %s", version.String())
	if err := run(context.Background(), o, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
