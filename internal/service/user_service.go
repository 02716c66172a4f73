package service

import (
	"context"

	"careerbook/internal/domain"
	"careerbook/internal/models"
)

type UserServiceImpl struct {
	repo domain.Repository
}

func NewUserService(repo domain.Repository) *UserServiceImpl {
	return &UserServiceImpl{repo: repo}
}

// RegisterUser upserts the account identity keyed by email.
func (s *UserServiceImpl) RegisterUser(ctx context.Context, user *models.User) error {
	email, err := normalizeEmail(user.Email)
	if err != nil {
		return err
	}
	user.Email = email
	if user.Name == "" {
		user.Name = email
	}
	return s.repo.CreateOrUpdateUser(ctx, user)
}

func (s *UserServiceImpl) GetUser(ctx context.Context, email string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByEmail(ctx, email)
}
