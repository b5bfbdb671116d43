package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"container-dispatch/core/models"
)

const pageSize = 100

const jobColumns = `
	j.id, j.job_number, j.customer, j.uplift, j.offload, j.job_start, j.size, j.weight,
	j.commodity_code, j.doors, j.pin, j.slot, j.dg, j.instructions, j.release_number,
	j.container_number, j.reference, j.current_stage, j.is_completed, j.assigned_to,
	j.proof_notes, j.proof_images, j.proof_submitted_at, j.created_at, j.updated_at,
	u.username, u.user_main_id`

const jobFrom = ` FROM jobs j LEFT JOIN users u ON u.id = j.assigned_to`

// JobRepository handles database operations for jobs and their status history
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// JobFilter narrows a job query. Zero values mean "no constraint".
type JobFilter struct {
	Completed   *bool
	AssignedTo  string
	Unassigned  bool
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	CreatedFrom *time.Time
}

// argList numbers placeholders in the order they are added
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func (f JobFilter) where(a *argList) string {
	var conds []string
	if f.Completed != nil {
		conds = append(conds, "j.is_completed = "+a.add(*f.Completed))
	}
	if f.AssignedTo != "" {
		conds = append(conds, "j.assigned_to = "+a.add(f.AssignedTo))
	}
	if f.Unassigned {
		conds = append(conds, "j.assigned_to IS NULL")
	}
	if f.UpdatedFrom != nil {
		conds = append(conds, "j.updated_at >= "+a.add(f.UpdatedFrom.UTC()))
	}
	if f.UpdatedTo != nil {
		conds = append(conds, "j.updated_at <= "+a.add(f.UpdatedTo.UTC()))
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "j.created_at >= "+a.add(f.CreatedFrom.UTC()))
	}
	if len(conds) == 0 {
		return " WHERE 1=1"
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// CreateJob inserts a job together with its initial status entry
func (r *JobRepository) CreateJob(ctx context.Context, job *models.Job) error {
	if len(job.Status) != 1 {
		return fmt.Errorf("new job %s must carry exactly one status entry", job.ID)
	}

	query := `
		INSERT INTO jobs (
			id, job_number, customer, uplift, offload, job_start, size, weight,
			commodity_code, doors, pin, slot, dg, instructions, release_number,
			container_number, reference, current_stage, is_completed, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21
		)
	`

	var jobStart any
	if job.JobStart != nil {
		jobStart = job.JobStart.UTC()
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			job.ID,
			job.JobNumber,
			job.Customer,
			job.Uplift,
			job.Offload,
			jobStart,
			job.Size,
			job.Weight,
			job.CommodityCode,
			job.Doors,
			job.PIN,
			job.Slot,
			job.DangerousGoods,
			job.Instructions,
			job.Release,
			job.ContainerNumber,
			job.Reference,
			string(job.CurrentStage()),
			job.IsCompleted,
			job.CreatedAt.UTC(),
			job.UpdatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		return insertStatusEvent(ctx, tx, job.ID, nil, job.Status[0], "")
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("job number %s: %w", job.JobNumber, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID with its full status history
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+jobColumns+jobFrom+" WHERE j.id = $1", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := r.loadHistories(ctx, []*models.Job{job}); err != nil {
		return nil, err
	}
	return job, nil
}

// Jobs returns a lazy sequence over jobs matching filter, newest first.
// Each iteration issues fresh keyset-paginated queries; nothing is cached between runs.
func (r *JobRepository) Jobs(ctx context.Context, filter JobFilter) iter.Seq2[*models.Job, error] {
	return func(yield func(*models.Job, error) bool) {
		var after *models.Job
		for {
			page, err := r.listPage(ctx, filter, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, job := range page {
				if !yield(job, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			after = page[len(page)-1]
		}
	}
}

func (r *JobRepository) listPage(ctx context.Context, filter JobFilter, after *models.Job) ([]*models.Job, error) {
	var args argList
	query := "SELECT" + jobColumns + jobFrom + filter.where(&args)
	if after != nil {
		createdAt := args.add(after.CreatedAt.UTC())
		id := args.add(after.ID)
		query += fmt.Sprintf(" AND (j.created_at < %s OR (j.created_at = %s AND j.id < %s))", createdAt, createdAt, id)
	}
	query += " ORDER BY j.created_at DESC, j.id DESC LIMIT " + args.add(pageSize)

	rows, err := r.db.QueryContext(ctx, query, args.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	// rows are closed before loading histories so a single-connection pool never deadlocks
	if err := r.loadHistories(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// AppendStage atomically appends a status entry if the job is still at expected and not completed.
// Returns ErrStaleWrite when the guard predicate matched no row.
func (r *JobRepository) AppendStage(ctx context.Context, jobID string, expected models.Stage, ev models.StatusEvent, completed bool, actorID string) error {
	query := `
		UPDATE jobs SET current_stage = $1, is_completed = $2, updated_at = $3
		WHERE id = $4 AND current_stage = $5 AND is_completed = $6
	`
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := execGuarded(ctx, tx, query, string(ev.Stage), completed, ev.Timestamp.UTC(), jobID, string(expected), false); err != nil {
			return err
		}
		return insertStatusEvent(ctx, tx, jobID, &expected, ev, actorID)
	})
}

// CompleteWithProof atomically stores proof, appends the done entry and marks the job completed.
// The write only applies while the job is still at expected and not completed.
func (r *JobRepository) CompleteWithProof(ctx context.Context, jobID string, expected models.Stage, proof models.Proof, ev models.StatusEvent, actorID string) error {
	images, err := json.Marshal(proof.Images)
	if err != nil {
		return fmt.Errorf("failed to encode proof images: %w", err)
	}

	query := `
		UPDATE jobs SET current_stage = $1, is_completed = $2, proof_notes = $3, proof_images = $4,
			proof_submitted_at = $5, updated_at = $6
		WHERE id = $7 AND current_stage = $8 AND is_completed = $9
	`
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := execGuarded(ctx, tx, query,
			string(ev.Stage), true, proof.Notes, string(images), proof.SubmittedAt.UTC(), ev.Timestamp.UTC(),
			jobID, string(expected), false,
		)
		if err != nil {
			return err
		}
		return insertStatusEvent(ctx, tx, jobID, &expected, ev, actorID)
	})
}

// AssignDriver binds the job to driverID unless it has been completed
func (r *JobRepository) AssignDriver(ctx context.Context, jobID, driverID string, at time.Time) error {
	query := `UPDATE jobs SET assigned_to = $1, updated_at = $2 WHERE id = $3 AND is_completed = $4`
	res, err := r.db.ExecContext(ctx, query, driverID, at.UTC(), jobID, false)
	if err != nil {
		return fmt.Errorf("failed to assign job: %w", err)
	}
	return checkAffected(res)
}

// UpdateDetails overwrites the descriptive fields of an active job
func (r *JobRepository) UpdateDetails(ctx context.Context, jobID string, d models.JobDetails, at time.Time) error {
	query := `
		UPDATE jobs SET
			job_number = $1, customer = $2, uplift = $3, offload = $4, job_start = $5, size = $6,
			weight = $7, commodity_code = $8, doors = $9, pin = $10, slot = $11, dg = $12,
			instructions = $13, release_number = $14, container_number = $15, reference = $16,
			updated_at = $17
		WHERE id = $18 AND is_completed = $19
	`

	var jobStart any
	if d.JobStart != nil {
		jobStart = d.JobStart.UTC()
	}

	res, err := r.db.ExecContext(ctx, query,
		d.JobNumber, d.Customer, d.Uplift, d.Offload, jobStart, d.Size,
		d.Weight, d.CommodityCode, d.Doors, d.PIN, d.Slot, d.DangerousGoods,
		d.Instructions, d.Release, d.ContainerNumber, d.Reference,
		at.UTC(), jobID, false,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("job number %s: %w", d.JobNumber, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return checkAffected(res)
}

// DeleteJob removes a job, its history and its safety forms
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM safety_forms WHERE job_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete safety forms: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM job_status_events WHERE job_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete job history: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// CountJobs returns the total and completed job counts
func (r *JobRepository) CountJobs(ctx context.Context) (total, completed int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_completed = $1 THEN 1 ELSE 0 END), 0) FROM jobs`
	if err := r.db.QueryRowContext(ctx, query, true).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return total, completed, nil
}

func (r *JobRepository) loadHistories(ctx context.Context, jobs []*models.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	var args argList
	byID := make(map[string]*models.Job, len(jobs))
	placeholders := make([]string, 0, len(jobs))
	for _, job := range jobs {
		byID[job.ID] = job
		job.Status = []models.StatusEvent{}
		placeholders = append(placeholders, args.add(job.ID))
	}

	query := `SELECT job_id, stage, at FROM job_status_events WHERE job_id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY job_id, seq`

	rows, err := r.db.QueryContext(ctx, query, args.args...)
	if err != nil {
		return fmt.Errorf("failed to load status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			jobID string
			ev    models.StatusEvent
		)
		if err := rows.Scan(&jobID, &ev.Stage, &ev.Timestamp); err != nil {
			return fmt.Errorf("failed to scan status event: %w", err)
		}
		ev.Timestamp = ev.Timestamp.UTC()
		if job, ok := byID[jobID]; ok {
			job.Status = append(job.Status, ev)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job              models.Job
		jobStart         sql.NullTime
		currentStage     models.Stage
		assignedTo       sql.NullString
		proofNotes       sql.NullString
		proofImages      sql.NullString
		proofSubmittedAt sql.NullTime
		driverUsername   sql.NullString
		driverMainID     sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&job.JobNumber,
		&job.Customer,
		&job.Uplift,
		&job.Offload,
		&jobStart,
		&job.Size,
		&job.Weight,
		&job.CommodityCode,
		&job.Doors,
		&job.PIN,
		&job.Slot,
		&job.DangerousGoods,
		&job.Instructions,
		&job.Release,
		&job.ContainerNumber,
		&job.Reference,
		&currentStage,
		&job.IsCompleted,
		&assignedTo,
		&proofNotes,
		&proofImages,
		&proofSubmittedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&driverUsername,
		&driverMainID,
	)
	if err != nil {
		return nil, err
	}

	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	if jobStart.Valid {
		t := jobStart.Time.UTC()
		job.JobStart = &t
	}
	if assignedTo.Valid {
		id := assignedTo.String
		job.AssignedTo = &id
		job.Driver = &models.DriverRef{
			ID:         id,
			Username:   driverUsername.String,
			UserMainID: driverMainID.String,
		}
	}
	if proofSubmittedAt.Valid {
		proof := &models.Proof{
			Notes:       proofNotes.String,
			Images:      []string{},
			SubmittedAt: proofSubmittedAt.Time.UTC(),
		}
		if proofImages.Valid && proofImages.String != "" {
			if err := json.Unmarshal([]byte(proofImages.String), &proof.Images); err != nil {
				return nil, fmt.Errorf("corrupt proof images for job %s: %w", job.ID, err)
			}
		}
		job.Proof = proof
	}

	return &job, nil
}

// execGuarded runs a conditional update and reports ErrStaleWrite when it matched nothing
func execGuarded(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

func insertStatusEvent(ctx context.Context, tx *sql.Tx, jobID string, from *models.Stage, ev models.StatusEvent, actorID string) error {
	query := `
		INSERT INTO job_status_events (job_id, seq, from_stage, stage, actor_id, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var fromStage *string
	if from != nil {
		s := string(*from)
		fromStage = &s
	}

	_, err := tx.ExecContext(ctx, query, jobID, stageSeq(ev.Stage), fromStage, string(ev.Stage), actorID, ev.Timestamp.UTC())
	if isUniqueViolation(err) {
		return ErrStaleWrite
	}
	if err != nil {
		return fmt.Errorf("failed to record status event: %w", err)
	}
	return nil
}

// stageSeq is the position a stage must occupy in a valid history
func stageSeq(s models.Stage) int {
	for i, stage := range models.Stages {
		if stage == s {
			return i
		}
	}
	return -1
}
