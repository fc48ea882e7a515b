package blackbox

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rotorcore/internal/pid"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "blackbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func frame(tick uint64) Frame {
	v := float32(tick)
	return Frame{
		Tick:           tick,
		TimeUs:         tick * 1000,
		Throttle:       0.5,
		Setpoint:       [pid.AxisCount]float32{v, -v, 0.25 * v},
		Gyro:           [pid.AxisCount]float32{v - 1, -v + 0.5, 0},
		Output:         [pid.AxisCount]float32{0.125, -0.5, 1},
		LatenessCycles: uint32(tick % 7),
		DtermCutoffHz:  90 + v,
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Reapplying is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestMigrateDownAndUp(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.MigrateTo(1))
	_, err := db.Exec(`SELECT lateness_cycles FROM frames`)
	assert.Error(t, err, "column should be gone at version 1")

	require.NoError(t, db.MigrateUp())
	_, err = db.Exec(`SELECT lateness_cycles FROM frames`)
	assert.NoError(t, err)
}

func TestRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tuning := map[string]float64{"rate_p": 0.0125}
	s, err := db.NewSession(ctx, 1000, true, "hover test", tuning)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	rec := db.NewRecorder(s.ID, 3)
	var want []Frame
	for tick := uint64(0); tick < 7; tick++ {
		f := frame(tick)
		want = append(want, f)
		require.NoError(t, rec.Add(ctx, f))
	}
	assert.Equal(t, 6, rec.Written(), "two full batches flushed")
	require.NoError(t, rec.Flush(ctx))
	assert.Equal(t, 7, rec.Written())
	require.NoError(t, rec.Flush(ctx), "empty flush is a no-op")

	got, err := db.Frames(ctx, s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	sessions, err := db.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	if diff := cmp.Diff(s, sessions[0], cmpopts.IgnoreFields(Session{}, "StartedAt")); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, s.StartedAt.Equal(sessions[0].StartedAt))
	assert.JSONEq(t, `{"rate_p": 0.0125}`, sessions[0].TuningJSON)
}

func TestFramesOfUnknownSession(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Frames(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecorderRejectsUnknownSession(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	rec := db.NewRecorder("not-a-session", 0)
	require.NoError(t, rec.Add(ctx, frame(1)))
	assert.Error(t, rec.Flush(ctx), "foreign key must reject orphan frames")
	assert.Zero(t, rec.Written())
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	frames := []Frame{
		{TimeUs: 1000, LatenessCycles: 0, Setpoint: [pid.AxisCount]float32{10}, Gyro: [pid.AxisCount]float32{8}, Output: [pid.AxisCount]float32{1}},
		{TimeUs: 2000, LatenessCycles: 4, Setpoint: [pid.AxisCount]float32{10}, Gyro: [pid.AxisCount]float32{10}, Output: [pid.AxisCount]float32{0.5}},
		{TimeUs: 3000, LatenessCycles: 2, Setpoint: [pid.AxisCount]float32{10}, Gyro: [pid.AxisCount]float32{12}, Output: [pid.AxisCount]float32{-1}},
	}
	s := Summarize(frames, 1)

	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, uint64(2000), s.DurationUs)
	assert.InDelta(t, 2, s.LatenessMeanCycles, 1e-9)
	assert.InDelta(t, 2, s.LatenessStdDevCycles, 1e-9)
	assert.Equal(t, 4.0, s.LatenessMaxCycles)
	assert.Equal(t, 4.0, s.LatenessP99Cycles)

	roll := s.Axes[pid.Roll]
	assert.InDelta(t, 0, roll.MeanError, 1e-9)
	assert.InDelta(t, math.Sqrt(8.0/3), roll.RMSError, 1e-9)
	assert.Equal(t, 2.0, roll.MaxAbsError)
	assert.InDelta(t, 2.0/3, roll.Saturation, 1e-9)

	assert.Zero(t, s.Axes[pid.Yaw].RMSError)
	assert.Zero(t, s.Axes[pid.Yaw].Saturation)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Summary{}, Summarize(nil, 1))
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	s := Summary{Frames: 2, DurationUs: 1_250_000}
	s.Axes[pid.Pitch] = AxisSummary{RMSError: 1.25, Saturation: 0.5}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, "session x", s))
	out := buf.String()
	assert.Contains(t, out, "session x: 2 frames over 1.250 s")
	assert.Contains(t, out, "pitch")
	assert.Contains(t, out, "1.25")
	assert.Contains(t, out, "50.0%")
}
