package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"container-dispatch/core/models"
)

const userColumns = `id, username, email, password_hash, role, user_main_id, is_active, last_login, created_at, updated_at`

// UserRepository handles database operations for accounts
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new account
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, user_main_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.UserMainID,
		user.IsActive,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username or email already taken: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves an account by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetUserByUsername retrieves an account by its login name
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+column+" = $1", value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers lists accounts, optionally restricted to one role
func (r *UserRepository) ListUsers(ctx context.Context, role *models.Role) ([]*models.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	args := []any{}
	if role != nil {
		query += " WHERE role = $1"
		args = append(args, string(*role))
	}
	query += " ORDER BY username"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser overwrites the profile fields of an account.
// An account that is no longer an active driver loses its active jobs in the same transaction;
// completed jobs keep their assignee.
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET username = $1, email = $2, role = $3, user_main_id = $4, is_active = $5, updated_at = $6
		WHERE id = $7
	`
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			user.Username, user.Email, string(user.Role), user.UserMainID, user.IsActive, user.UpdatedAt.UTC(), user.ID,
		)
		if err != nil {
			return err
		}
		if err := notFoundIfNone(res, "user", user.ID); err != nil {
			return err
		}
		if user.Role != models.RoleDriver || !user.IsActive {
			return releaseActiveJobs(ctx, tx, user.ID)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("username or email already taken: %w", ErrDuplicate)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return err
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, utcNow(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return notFoundIfNone(res, "user", id)
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// DeleteUser removes an account and unassigns its active jobs.
// Accounts referenced by a completed job or a safety form are refused with ErrInUse.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var completed, forms int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM jobs WHERE assigned_to = $1 AND is_completed = $2`, id, true,
		).Scan(&completed)
		if err != nil {
			return fmt.Errorf("failed to count jobs: %w", err)
		}
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM safety_forms WHERE user_id = $1`, id).Scan(&forms)
		if err != nil {
			return fmt.Errorf("failed to count safety forms: %w", err)
		}
		if completed > 0 || forms > 0 {
			return fmt.Errorf("user %s has %d completed jobs and %d safety forms: %w", id, completed, forms, ErrInUse)
		}

		if err := releaseActiveJobs(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return notFoundIfNone(res, "user", id)
	})
}

// releaseActiveJobs unassigns every job of userID that is not completed
func releaseActiveJobs(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE jobs SET assigned_to = NULL WHERE assigned_to = $1 AND is_completed = $2`, userID, false,
	)
	if err != nil {
		return fmt.Errorf("failed to release jobs: %w", err)
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		role      string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.UserMainID,
		&user.IsActive,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		user.LastLogin = &t
	}
	return &user, nil
}

func notFoundIfNone(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
