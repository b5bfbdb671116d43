package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"container-dispatch/core/models"
)

const safetyFormColumns = `id, job_id, job_number, user_id, first_name, surname, address_site, fit_for_duty, meal_break, ppe, message, created_at`

// SafetyFormRepository handles database operations for safety forms
type SafetyFormRepository struct {
	db *DB
}

// NewSafetyFormRepository creates a new safety form repository
func NewSafetyFormRepository(db *DB) *SafetyFormRepository {
	return &SafetyFormRepository{db: db}
}

// SafetyFormFilter narrows a listing. Empty fields match everything.
type SafetyFormFilter struct {
	JobNumber string
	UserID    string
}

// CreateSafetyForm inserts a form
func (r *SafetyFormRepository) CreateSafetyForm(ctx context.Context, f *models.SafetyForm) error {
	query := `
		INSERT INTO safety_forms (` + safetyFormColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.JobID, f.JobNumber, f.UserID, f.FirstName, f.Surname, f.AddressSite,
		f.FitForDuty, f.MealBreak, f.PPE, f.Message, f.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create safety form: %w", err)
	}
	return nil
}

// GetSafetyForm retrieves a form by ID
func (r *SafetyFormRepository) GetSafetyForm(ctx context.Context, id string) (*models.SafetyForm, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+safetyFormColumns+` FROM safety_forms WHERE id = $1`, id)
	f, err := scanSafetyForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("safety form %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get safety form: %w", err)
	}
	return f, nil
}

// ListSafetyForms returns matching forms, newest first
func (r *SafetyFormRepository) ListSafetyForms(ctx context.Context, filter SafetyFormFilter) ([]*models.SafetyForm, error) {
	var a argList
	query := `SELECT ` + safetyFormColumns + ` FROM safety_forms WHERE 1 = 1`
	if filter.JobNumber != "" {
		query += ` AND job_number = ` + a.add(filter.JobNumber)
	}
	if filter.UserID != "" {
		query += ` AND user_id = ` + a.add(filter.UserID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, a.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list safety forms: %w", err)
	}
	defer rows.Close()

	forms := []*models.SafetyForm{}
	for rows.Next() {
		f, err := scanSafetyForm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan safety form: %w", err)
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func scanSafetyForm(row rowScanner) (*models.SafetyForm, error) {
	var f models.SafetyForm
	err := row.Scan(
		&f.ID, &f.JobID, &f.JobNumber, &f.UserID, &f.FirstName, &f.Surname, &f.AddressSite,
		&f.FitForDuty, &f.MealBreak, &f.PPE, &f.Message, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}
