package blackbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rotorcore/internal/monitoring"
	"github.com/banshee-data/rotorcore/internal/pid"
)

// Session is one recorded flight.
type Session struct {
	ID         string
	StartedAt  time.Time
	LoopRateHz float64
	AngleMode  bool
	Note       string
	TuningJSON string
}

// Frame is one control tick.
type Frame struct {
	Tick           uint64
	TimeUs         uint64
	Throttle       float32
	Setpoint       [pid.AxisCount]float32
	Gyro           [pid.AxisCount]float32
	Output         [pid.AxisCount]float32
	LatenessCycles uint32
	DtermCutoffHz  float32
}

// NewSession inserts a session row. tuning is stored as JSON and may be nil.
func (db *DB) NewSession(ctx context.Context, loopRateHz float64, angleMode bool, note string, tuning any) (Session, error) {
	tuningJSON := "{}"
	if tuning != nil {
		b, err := json.Marshal(tuning)
		if err != nil {
			return Session{}, fmt.Errorf("failed to encode tuning: %w", err)
		}
		tuningJSON = string(b)
	}

	s := Session{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		LoopRateHz: loopRateHz,
		AngleMode:  angleMode,
		Note:       note,
		TuningJSON: tuningJSON,
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, loop_rate_hz, angle_mode, note, tuning_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt, s.LoopRateHz, s.AngleMode, s.Note, s.TuningJSON)
	if err != nil {
		return Session{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// Recorder buffers frames for one session and writes them in batches.
type Recorder struct {
	db        *DB
	sessionID string
	batchSize int

	mu      sync.Mutex
	pending []Frame
	written int

	logf func(format string, v ...interface{})
}

// DefaultBatchSize is the number of frames written per transaction.
const DefaultBatchSize = 500

// NewRecorder returns a recorder for session. A batchSize of zero or less
// uses DefaultBatchSize.
func (db *DB) NewRecorder(sessionID string, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{
		db:        db,
		sessionID: sessionID,
		batchSize: batchSize,
		pending:   make([]Frame, 0, batchSize),
		logf:      monitoring.Prefixed("[blackbox] "),
	}
}

// Add queues a frame and flushes when a batch is full.
func (r *Recorder) Add(ctx context.Context, f Frame) error {
	r.mu.Lock()
	r.pending = append(r.pending, f)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()
	if full {
		return r.Flush(ctx)
	}
	return nil
}

// Written returns the number of frames committed so far.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Flush writes all queued frames in one transaction.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin frame batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frames (
			session_id, tick, time_us, throttle,
			setpoint_roll, setpoint_pitch, setpoint_yaw,
			gyro_roll, gyro_pitch, gyro_yaw,
			out_roll, out_pitch, out_yaw,
			lateness_cycles, dterm_cutoff_hz
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range r.pending {
		_, err := stmt.ExecContext(ctx,
			r.sessionID, int64(f.Tick), int64(f.TimeUs), f.Throttle,
			f.Setpoint[pid.Roll], f.Setpoint[pid.Pitch], f.Setpoint[pid.Yaw],
			f.Gyro[pid.Roll], f.Gyro[pid.Pitch], f.Gyro[pid.Yaw],
			f.Output[pid.Roll], f.Output[pid.Pitch], f.Output[pid.Yaw],
			int64(f.LatenessCycles), f.DtermCutoffHz)
		if err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Tick, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame batch: %w", err)
	}

	r.written += len(r.pending)
	r.logf("session %s: flushed %d frames (%d total)", r.sessionID, len(r.pending), r.written)
	r.pending = r.pending[:0]
	return nil
}

// Sessions lists recorded sessions, newest first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, started_at, loop_rate_hz, angle_mode, note, tuning_json
		FROM sessions
		ORDER BY started_at DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.LoopRateHz, &s.AngleMode, &s.Note, &s.TuningJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Frames returns the frames of one session in tick order.
func (db *DB) Frames(ctx context.Context, sessionID string) ([]Frame, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tick, time_us, throttle,
			setpoint_roll, setpoint_pitch, setpoint_yaw,
			gyro_roll, gyro_pitch, gyro_yaw,
			out_roll, out_pitch, out_yaw,
			lateness_cycles, dterm_cutoff_hz
		FROM frames
		WHERE session_id = ?
		ORDER BY tick`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var (
			f              Frame
			tick, timeUs   int64
			latenessCycles int64
		)
		if err := rows.Scan(&tick, &timeUs, &f.Throttle,
			&f.Setpoint[pid.Roll], &f.Setpoint[pid.Pitch], &f.Setpoint[pid.Yaw],
			&f.Gyro[pid.Roll], &f.Gyro[pid.Pitch], &f.Gyro[pid.Yaw],
			&f.Output[pid.Roll], &f.Output[pid.Pitch], &f.Output[pid.Yaw],
			&latenessCycles, &f.DtermCutoffHz); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Tick, f.TimeUs, f.LatenessCycles = uint64(tick), uint64(timeUs), uint32(latenessCycles)
		out = append(out, f)
	}
	return out, rows.Err()
}
