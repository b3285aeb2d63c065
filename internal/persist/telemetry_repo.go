package persist

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// FrameSample is a row for the frame_samples table.
type FrameSample struct {
	Frame       uint64
	FrameMs     float64
	FPS         float64
	QueuedTasks int
	ActiveTasks int
}

// SystemSample is a row for the system_samples table.
type SystemSample struct {
	Frame       uint64
	SystemName  string
	Strategy    string
	AvgMs       float64
	PeakMs      float64
	UpdateCount uint64
	ErrorCount  uint64
	Disabled    bool
}

// TelemetryRepo persists scheduler performance snapshots.
type TelemetryRepo struct {
	db *DB
}

func NewTelemetryRepo(db *DB) *TelemetryRepo {
	return &TelemetryRepo{db: db}
}

// SaveSnapshot writes one frame sample and its per-system samples in a single
// batch round trip.
func (r *TelemetryRepo) SaveSnapshot(ctx context.Context, frame FrameSample, systems []SystemSample) error {
	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO frame_samples (frame, frame_ms, fps, queued_tasks, active_tasks)
		 VALUES ($1, $2, $3, $4, $5)`,
		frame.Frame, frame.FrameMs, frame.FPS, frame.QueuedTasks, frame.ActiveTasks)

	for _, s := range systems {
		batch.Queue(
			`INSERT INTO system_samples (frame, system_name, strategy, avg_ms, peak_ms,
			                             update_count, error_count, disabled)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.Frame, s.SystemName, s.Strategy, s.AvgMs, s.PeakMs,
			s.UpdateCount, s.ErrorCount, s.Disabled)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentFrames returns the newest frame samples, most recent first.
func (r *TelemetryRepo) RecentFrames(ctx context.Context, limit int) ([]FrameSample, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT frame, frame_ms, fps, queued_tasks, active_tasks
		 FROM frame_samples ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []FrameSample
	for rows.Next() {
		var s FrameSample
		if err := rows.Scan(&s.Frame, &s.FrameMs, &s.FPS, &s.QueuedTasks, &s.ActiveTasks); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
