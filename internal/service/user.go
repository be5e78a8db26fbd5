package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sankalp/sankalp/internal/model"
	"github.com/sankalp/sankalp/internal/repository"
)

// UserService manages the signed-in user's own profile.
type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/user: user ID must not be empty")
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ProfileUpdate carries the PATCH /me fields. Nil means unchanged.
type ProfileUpdate struct {
	Name               *string `json:"name"`
	EmailNotifications *bool   `json:"emailNotifications"`
	ReminderTime       *string `json:"reminderTime"`
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := checkLength("name", name, 1, maxNameLen); err != nil {
			return nil, err
		}
		user.Name = name
	}
	if upd.ReminderTime != nil {
		if err := checkClock("reminderTime", *upd.ReminderTime); err != nil {
			return nil, err
		}
		user.ReminderTime = *upd.ReminderTime
	}
	if upd.EmailNotifications != nil {
		user.EmailNotifications = *upd.EmailNotifications
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}
	return user, nil
}

// MarkDepositPaid records the commitment deposit. Calling it twice is a
// no-op.
func (s *UserService) MarkDepositPaid(ctx context.Context, id string) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.DepositPaid {
		return user, nil
	}
	user.DepositPaid = true
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}
	s.logger.Info("deposit marked paid", slog.String("user_id", id))
	return user, nil
}
