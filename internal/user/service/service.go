package service

import (
	"context"
	"database/sql"
	"errors"

	"examhub/internal/user"
	"examhub/pkg/hash"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserNotFound = errors.New("user not found")
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Register(ctx context.Context, email, password string) (*user.User, error) {
	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}

	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &user.User{
		Email:    email,
		Password: hashed,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCreds
	}

	if !hash.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCreds
	}

	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}
