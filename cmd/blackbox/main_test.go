package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotorcore/internal/blackbox"
	"github.com/banshee-data/rotorcore/internal/pid"
)

func seedDB(t *testing.T, frames int) (string, string) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bb.db")
	db, err := blackbox.Open(path)
	require.NoError(t, err)
	defer db.Close()

	s, err := db.NewSession(ctx, 1000, true, "hover", nil)
	require.NoError(t, err)
	rec := db.NewRecorder(s.ID, 0)
	for i := 0; i < frames; i++ {
		require.NoError(t, rec.Add(ctx, blackbox.Frame{
			Tick:     uint64(i),
			TimeUs:   uint64(i) * 1000,
			Setpoint: [pid.AxisCount]float32{10, 0, 0},
			Gyro:     [pid.AxisCount]float32{9, 0, 0},
		}))
	}
	require.NoError(t, rec.Flush(ctx))
	return path, s.ID
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-db", "x.db", "-list"})
	require.NoError(t, err)
	assert.Equal(t, options{dbPath: "x.db", list: true, saturation: 1, rateUnits: "dps"}, o)

	o, err = parseFlags([]string{"-units", "rpm"})
	require.NoError(t, err)
	assert.Equal(t, "rpm", o.rateUnits)
	_, err = parseFlags([]string{"-units", "mph"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-saturation", "0"})
	assert.Error(t, err)
	_, err = parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestRunListsSessions(t *testing.T) {
	path, id := seedDB(t, 3)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), options{dbPath: path, list: true, saturation: 1}, &out))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "angle")
	assert.Contains(t, out.String(), "hover")
}

func TestRunSummarisesLatestSession(t *testing.T) {
	path, id := seedDB(t, 20)
	dir := filepath.Join(t.TempDir(), "out")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), options{dbPath: path, saturation: 1, reportDir: dir, rateUnits: "dps"}, &out))
	assert.Contains(t, out.String(), "session "+id+" (dps): 20 frames")
	assert.Contains(t, out.String(), "wrote 6 plots")

	_, err := os.Stat(filepath.Join(dir, id+".html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "roll_rate.png"))
	assert.NoError(t, err)
}

func TestConvertSummary(t *testing.T) {
	var s blackbox.Summary
	s.Axes[pid.Roll] = blackbox.AxisSummary{MeanError: 60, RMSError: 120, MaxAbsError: 360, Saturation: 0.25}
	got := convertSummary(s, "rpm")
	assert.Equal(t, blackbox.AxisSummary{MeanError: 10, RMSError: 20, MaxAbsError: 60, Saturation: 0.25}, got.Axes[pid.Roll])
	assert.Equal(t, 60.0, s.Axes[pid.Roll].MeanError, "input is not modified")
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	err := run(ctx, options{dbPath: filepath.Join(t.TempDir(), "missing.db"), saturation: 1}, &bytes.Buffer{})
	assert.Error(t, err, "missing database is not created")

	path, _ := seedDB(t, 1)
	err = run(ctx, options{dbPath: path, sessionID: "nope", saturation: 1}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no frames")

	empty := filepath.Join(t.TempDir(), "empty.db")
	db, err := blackbox.Open(empty)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.ErrorIs(t, run(ctx, options{dbPath: empty, saturation: 1}, &bytes.Buffer{}), errNoSessions)
}
