package clients

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

const selectClient = `
SELECT id, name, email, rm_user_id, is_email_verified, created_at
FROM clients
`

func (r *PGRepo) Create(ctx context.Context, client Client) (Client, error) {
	const query = `
INSERT INTO clients (name, email, rm_user_id)
VALUES ($1, $2, $3)
RETURNING id, is_email_verified, created_at`
	err := r.DB.QueryRowContext(ctx, query, client.Name, client.Email, client.RMUserID).
		Scan(&client.ID, &client.IsEmailVerified, &client.CreatedAt)
	if err != nil {
		return Client{}, err
	}
	return client, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (Client, error) {
	return scanClient(r.DB.QueryRowContext(ctx, selectClient+"WHERE id = $1", id))
}

func (r *PGRepo) GetOwned(ctx context.Context, rmID, id int64) (Client, error) {
	return scanClient(r.DB.QueryRowContext(ctx, selectClient+"WHERE id = $1 AND rm_user_id = $2", id, rmID))
}

func (r *PGRepo) ListByRM(ctx context.Context, rmID int64) ([]Client, error) {
	rows, err := r.DB.QueryContext(ctx, selectClient+"WHERE rm_user_id = $1 ORDER BY id", rmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.RMUserID, &c.IsEmailVerified, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkVerified only ever sets the flag; repeating it is a no-op.
func (r *PGRepo) MarkVerified(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE clients SET is_email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanClient(row *sql.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.RMUserID, &c.IsEmailVerified, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}
