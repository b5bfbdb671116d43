package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"container-dispatch/core/auth"
	"container-dispatch/core/lifecycle"
	"container-dispatch/core/models"
	"container-dispatch/core/repository"
	"container-dispatch/core/session"
)

// UserService manages accounts and logins
type UserService struct {
	users  *repository.UserRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a user service
func NewUserService(db *repository.DB, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: repository.NewUserRepository(db), logger: logger, now: time.Now}
}

// NewUser is the input for account creation
type NewUser struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	UserMainID string `json:"userMainId"`
}

// UserUpdate carries the fields to change; nil leaves a field as is
type UserUpdate struct {
	Username   *string `json:"username"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	UserMainID *string `json:"userMainId"`
	IsActive   *bool   `json:"isActive"`
	Password   *string `json:"password"`
}

// Login verifies credentials and records the login time
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	if !user.IsActive {
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	now := s.timestamp()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, storageErr("record login", err)
	}
	user.LastLogin = &now
	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// CreateUser adds an account
func (s *UserService) CreateUser(ctx context.Context, actor session.Actor, in NewUser) (*models.User, error) {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return nil, err
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	username, email, err := validateIdentity(in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	now := s.timestamp()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		UserMainID:   strings.TrimSpace(in.UserMainID),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateUser, username)
		}
		return nil, storageErr("create user", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role, "actor", actor.Username)
	return user, nil
}

// GetUser returns an account. Non-admins may only read their own.
func (s *UserService) GetUser(ctx context.Context, actor session.Actor, id string) (*models.User, error) {
	if actor.UserID != id {
		if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
			return nil, err
		}
	}
	return s.load(ctx, id)
}

// ListUsers lists every account
func (s *UserService) ListUsers(ctx context.Context, actor session.Actor) ([]*models.User, error) {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx, nil)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

// ListUsersByRole lists accounts with one role, used to pick a driver
func (s *UserService) ListUsersByRole(ctx context.Context, actor session.Actor, role string) ([]*models.User, error) {
	if err := lifecycle.CanManage(actor.Role).Error(); err != nil {
		return nil, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	users, err := s.users.ListUsers(ctx, &r)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

// UpdateUser changes profile fields, activation and optionally the password.
// A driver who is deactivated or given another role loses their active jobs.
func (s *UserService) UpdateUser(ctx context.Context, actor session.Actor, id string, in UserUpdate) (*models.User, error) {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	username, email := user.Username, user.Email
	if in.Username != nil {
		username = *in.Username
	}
	if in.Email != nil {
		email = *in.Email
	}
	if user.Username, user.Email, err = validateIdentity(username, email); err != nil {
		return nil, err
	}
	if in.Role != nil {
		if user.Role, err = models.ParseRole(*in.Role); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
		}
	}
	if in.UserMainID != nil {
		user.UserMainID = strings.TrimSpace(*in.UserMainID)
	}
	if in.IsActive != nil {
		if id == actor.UserID && !*in.IsActive {
			return nil, fmt.Errorf("%w: you cannot deactivate your own account", ErrInvalidUser)
		}
		user.IsActive = *in.IsActive
	}
	user.UpdatedAt = s.timestamp()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, s.writeErr("update user", id, err)
	}
	if in.Password != nil {
		if err := s.setPassword(ctx, id, *in.Password); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user updated", "user_id", id, "actor", actor.Username)
	return user, nil
}

// DeleteUser removes an account. Its active jobs become unassigned.
// Accounts with completed jobs or safety forms on record must be deactivated instead.
func (s *UserService) DeleteUser(ctx context.Context, actor session.Actor, id string) error {
	if err := lifecycle.CanAdminister(actor.Role).Error(); err != nil {
		return err
	}
	if id == actor.UserID {
		return fmt.Errorf("%w: you cannot delete your own account", ErrInvalidUser)
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return s.writeErr("delete user", id, err)
	}
	s.logger.Info("user deleted", "user_id", id, "actor", actor.Username)
	return nil
}

// ChangePassword replaces the caller's own password after verifying the current one
func (s *UserService) ChangePassword(ctx context.Context, actor session.Actor, current, next string) error {
	user, err := s.load(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, next)
}

func (s *UserService) setPassword(ctx context.Context, id, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return s.writeErr("update password", id, err)
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, storageErr("load user", err)
	}
	return user, nil
}

func (s *UserService) writeErr(op, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateUser
	case errors.Is(err, repository.ErrInUse):
		return fmt.Errorf("%w: deactivate %s instead", ErrUserInUse, id)
	}
	return storageErr(op, err)
}

func (s *UserService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateIdentity(username, email string) (string, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return "", "", fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if at := strings.Index(email, "@"); at < 1 || at == len(email)-1 {
		return "", "", fmt.Errorf("%w: %q is not a valid email", ErrInvalidUser, email)
	}
	return username, email, nil
}
