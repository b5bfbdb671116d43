package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"container-dispatch/core/lifecycle"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

// AddressService manages the pickup and delivery directory
type AddressService struct {
	addresses *repository.AddressRepository
	now       func() time.Time
}

// NewAddressService creates an address service
func NewAddressService(db *repository.DB) *AddressService {
	return &AddressService{addresses: repository.NewAddressRepository(db), now: time.Now}
}

// AddressInput is the writable part of an address
type AddressInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

func (in AddressInput) normalize() (AddressInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Address == "" {
		return in, fmt.Errorf("%w: name and address are required", ErrInvalidAddress)
	}
	return in, nil
}

// CreateAddress adds an address
func (s *AddressService) CreateAddress(ctx context.Context, actor session.Actor, in AddressInput) (*models.Address, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	a := &models.Address{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Address:   in.Address,
		Email:     in.Email,
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.addresses.CreateAddress(ctx, a); err != nil {
		return nil, storageErr("create address", err)
	}
	return a, nil
}

// ListAddresses returns the directory
func (s *AddressService) ListAddresses(ctx context.Context) ([]*models.Address, error) {
	list, err := s.addresses.ListAddresses(ctx)
	if err != nil {
		return nil, storageErr("list addresses", err)
	}
	return list, nil
}

// GetAddress returns one address
func (s *AddressService) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	a, err := s.addresses.GetAddress(ctx, id)
	if err != nil {
		return nil, addressErr("load address", id, err)
	}
	return a, nil
}

// UpdateAddress overwrites an address
func (s *AddressService) UpdateAddress(ctx context.Context, actor session.Actor, id string, in AddressInput) (*models.Address, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	a, err := s.GetAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Name, a.Address, a.Email = in.Name, in.Address, in.Email
	a.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.addresses.UpdateAddress(ctx, a); err != nil {
		return nil, addressErr("update address", id, err)
	}
	return a, nil
}

// DeleteAddress removes an address
func (s *AddressService) DeleteAddress(ctx context.Context, actor session.Actor, id string) error {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return err
	}
	if err := s.addresses.DeleteAddress(ctx, id); err != nil {
		return addressErr("delete address", id, err)
	}
	return nil
}

func addressErr(op, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAddressNotFound, id)
	}
	return storageErr(op, err)
}
