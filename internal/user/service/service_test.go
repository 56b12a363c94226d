package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examhub/internal/user"
	"examhub/pkg/hash"
)

type fakeUserRepo struct {
	byEmail map[string]*user.User
	byID    map[int64]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail: make(map[string]*user.User),
		byID:    make(map[int64]*user.User),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	u.ID = int64(len(f.byID) + 1)
	f.byEmail[u.Email] = u
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	u, err := svc.Register(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NotEqual(t, "secret123", u.Password, "password is stored hashed")
	assert.True(t, hash.CheckPassword(u.Password, "secret123"))

	got, err := svc.Login(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "a@b.com", "other")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := NewUserService(newFakeUserRepo())

	_, err := svc.Register(context.Background(), "a@b.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCreds)

	_, err = svc.Login(context.Background(), "nobody@b.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestIsAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewUserService(repo)

	u, err := svc.Register(context.Background(), "admin@b.com", "secret123")
	require.NoError(t, err)
	u.IsAdmin = true

	ok, err := svc.IsAdmin(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.IsAdmin(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
