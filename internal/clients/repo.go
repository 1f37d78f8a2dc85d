package clients

import "context"

// Repo stores clients. Owned lookups return ErrNotFound for clients of other RMs.
type Repo interface {
	Create(ctx context.Context, client Client) (Client, error)
	GetByID(ctx context.Context, id int64) (Client, error)
	GetOwned(ctx context.Context, rmID, id int64) (Client, error)
	ListByRM(ctx context.Context, rmID int64) ([]Client, error)
	MarkVerified(ctx context.Context, id int64) error
}
