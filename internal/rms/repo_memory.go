package rms

import (
	"context"
	"strings"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[int64]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return User{}, ErrDuplicate
		}
		if user.Email != "" && strings.EqualFold(existing.Email, user.Email) {
			return User{}, ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	return r.find(ctx, func(u User) bool { return u.Username == username })
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if email == "" {
		return User{}, ErrNotFound
	}
	return r.find(ctx, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepo) find(ctx context.Context, match func(User) bool) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}
