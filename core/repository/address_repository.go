package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"container-dispatch/core/models"
)

// AddressRepository handles database operations for the address directory
type AddressRepository struct {
	db *DB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// CreateAddress inserts an address
func (r *AddressRepository) CreateAddress(ctx context.Context, a *models.Address) error {
	query := `
		INSERT INTO addresses (id, name, address, email, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.Name, a.Address, a.Email, a.CreatedBy, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

// GetAddress retrieves an address by ID
func (r *AddressRepository) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, address, email, created_by, created_at, updated_at FROM addresses WHERE id = $1`, id)
	a, err := scanAddress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

// ListAddresses lists the whole directory by name
func (r *AddressRepository) ListAddresses(ctx context.Context) ([]*models.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, address, email, created_by, created_at, updated_at FROM addresses ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// UpdateAddress overwrites an address
func (r *AddressRepository) UpdateAddress(ctx context.Context, a *models.Address) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE addresses SET name = $1, address = $2, email = $3, updated_at = $4 WHERE id = $5`,
		a.Name, a.Address, a.Email, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	return notFoundIfNone(res, "address", a.ID)
}

// DeleteAddress removes an address
func (r *AddressRepository) DeleteAddress(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return notFoundIfNone(res, "address", id)
}

func scanAddress(row rowScanner) (*models.Address, error) {
	var a models.Address
	if err := row.Scan(&a.ID, &a.Name, &a.Address, &a.Email, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}
