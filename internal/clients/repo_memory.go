package clients

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	clients map[int64]Client
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{clients: make(map[int64]Client)}
}

func (r *MemoryRepo) Create(ctx context.Context, client Client) (Client, error) {
	if err := ctx.Err(); err != nil {
		return Client{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	client.ID = r.nextID
	client.CreatedAt = time.Now().UTC()
	r.clients[client.ID] = client
	return client, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Client, error) {
	if err := ctx.Err(); err != nil {
		return Client{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return client, nil
}

func (r *MemoryRepo) GetOwned(ctx context.Context, rmID, id int64) (Client, error) {
	client, err := r.GetByID(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if client.RMUserID != rmID {
		return Client{}, ErrNotFound
	}
	return client, nil
}

func (r *MemoryRepo) ListByRM(ctx context.Context, rmID int64) ([]Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, 0)
	for _, c := range r.clients {
		if c.RMUserID == rmID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) MarkVerified(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok {
		return ErrNotFound
	}
	client.IsEmailVerified = true
	r.clients[id] = client
	return nil
}
