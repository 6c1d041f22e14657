package service

import (
	"context"
	"strings"

	"github.com/PeraltaFrian/photo-sharing/internal/db"
	"github.com/PeraltaFrian/photo-sharing/internal/model"
	"github.com/google/uuid"
)

type AdminService struct {
	repo UserRepository
}

func NewAdminService(repo UserRepository) *AdminService {
	return &AdminService{repo: repo}
}

// ListUsers returns every account without password or reset secrets.
func (s *AdminService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

func (s *AdminService) UpdateRole(ctx context.Context, id, role string) error {
	r := model.Role(strings.TrimSpace(role))
	if r == "" || !r.Valid() {
		return ErrInvalidInput
	}

	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}

	if err := s.repo.UpdateUserRole(ctx, userID, r); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
