package service

import (
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
)

// UserService backs the admin user management surface.
type UserService struct {
	repo repository.UserRepository
}

// NewUserService creates a user service.
func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// List pages through customer accounts.
func (s *UserService) List(filter repository.UserListFilter) ([]models.User, int64, error) {
	if s.repo == nil {
		return []models.User{}, 0, nil
	}
	filter.Status = strings.TrimSpace(filter.Status)
	filter.Keyword = strings.TrimSpace(filter.Keyword)
	return s.repo.List(filter)
}

// UpdateStatus suspends or reactivates an account. Suspended users are
// skipped during commission attribution and cannot request payouts.
func (s *UserService) UpdateStatus(userID uint, rawStatus string) (*models.User, error) {
	if userID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	status := strings.ToLower(strings.TrimSpace(rawStatus))
	if status != constants.UserStatusActive && status != constants.UserStatusSuspended {
		return nil, ErrInvalidStateTransition
	}

	user, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if strings.ToLower(user.Status) == status {
		return user, nil
	}
	if err := s.repo.UpdateStatus(userID, status, time.Now()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(userID)
}
