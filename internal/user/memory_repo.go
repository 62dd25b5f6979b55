package user

import (
	"context"
	"slices"
	"sync"
	"time"

	"bookmarket/internal/apperr"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users []User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return apperr.Conflictf("email %s is already registered", u.Email)
		}
	}
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users = append(r.users, *u)
	return nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.find(func(u User) bool { return u.Email == email }, "user with email "+email)
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (User, error) {
	return r.find(func(u User) bool { return u.ID == id }, "user "+id)
}

func (r *MemoryRepo) find(match func(User) bool, what string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := slices.IndexFunc(r.users, match); i >= 0 {
		return r.users[i], nil
	}
	return User{}, apperr.NotFoundf("%s not found", what)
}

func (r *MemoryRepo) List(ctx context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users), nil
}

func (r *MemoryRepo) Update(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.users, func(existing User) bool { return existing.ID == u.ID })
	if i < 0 {
		return apperr.NotFoundf("user %s not found", u.ID)
	}
	u.Email = r.users[i].Email
	u.CreatedAt = r.users[i].CreatedAt
	u.UpdatedAt = time.Now().UTC()
	r.users[i] = u
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return apperr.NotFoundf("user %s not found", id)
	}
	r.users = slices.Delete(r.users, i, i+1)
	return nil
}
