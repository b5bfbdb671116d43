package repository

import (
	"context"
	"database/sql"
	"fmt"

	"container-dispatch/core/models"
)

// EventRepository handles database operations for job status events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetJobEvents retrieves the status transitions of a job in lifecycle order
func (r *EventRepository) GetJobEvents(ctx context.Context, jobID string) ([]models.JobEvent, error) {
	query := `
		SELECT id, job_id, seq, from_stage, stage, actor_id, at
		FROM job_status_events
		WHERE job_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job events: %w", err)
	}
	defer rows.Close()

	events := []models.JobEvent{}
	for rows.Next() {
		var event models.JobEvent
		var fromStage sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.Seq,
			&fromStage,
			&event.Stage,
			&event.ActorID,
			&event.At,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}

		if fromStage.Valid {
			stage := models.Stage(fromStage.String)
			event.FromStage = &stage
		}
		event.At = event.At.UTC()

		events = append(events, event)
	}

	return events, rows.Err()
}
