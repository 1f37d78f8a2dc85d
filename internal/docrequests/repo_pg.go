package docrequests

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"docrequests-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. Ownership is enforced by joining clients.
type PGRepo struct {
	DB *sql.DB
}

const selectRequest = `
SELECT dr.id, dr.request_uuid, dr.client_id, dr.is_completed, dr.link_used, dr.created_at
FROM document_requests dr
`

const selectDocument = `
SELECT d.id, d.document_request_id, d.storage_key, d.file_name, d.mime_type, d.size_bytes, d.page_count, d.created_at
FROM uploaded_documents d
`

func (r *PGRepo) Create(ctx context.Context, rmID int64, req DocumentRequest) (DocumentRequest, error) {
	const query = `
INSERT INTO document_requests (request_uuid, client_id)
SELECT $1, c.id FROM clients c WHERE c.id = $2 AND c.rm_user_id = $3
RETURNING id, is_completed, link_used, created_at`
	err := r.DB.QueryRowContext(ctx, query, req.UUID, req.ClientID, rmID).
		Scan(&req.ID, &req.IsCompleted, &req.LinkUsed, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentRequest{}, ErrNotFound
		}
		return DocumentRequest{}, err
	}
	return req, nil
}

func (r *PGRepo) GetByUUID(ctx context.Context, id uuid.UUID) (DocumentRequest, error) {
	return scanRequest(r.DB.QueryRowContext(ctx, selectRequest+"WHERE dr.request_uuid = $1", id))
}

func (r *PGRepo) GetOwnedByUUID(ctx context.Context, rmID int64, id uuid.UUID) (DocumentRequest, error) {
	const where = `JOIN clients c ON c.id = dr.client_id
WHERE dr.request_uuid = $1 AND c.rm_user_id = $2`
	return scanRequest(r.DB.QueryRowContext(ctx, selectRequest+where, id, rmID))
}

func (r *PGRepo) GetOwnedByID(ctx context.Context, rmID, id int64) (DocumentRequest, error) {
	const where = `JOIN clients c ON c.id = dr.client_id
WHERE dr.id = $1 AND c.rm_user_id = $2`
	return scanRequest(r.DB.QueryRowContext(ctx, selectRequest+where, id, rmID))
}

func (r *PGRepo) ListOwnedByClient(ctx context.Context, rmID, clientID int64) ([]DocumentRequest, error) {
	const where = `JOIN clients c ON c.id = dr.client_id
WHERE dr.client_id = $1 AND c.rm_user_id = $2
ORDER BY dr.created_at DESC, dr.id DESC`
	rows, err := r.DB.QueryContext(ctx, selectRequest+where, clientID, rmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DocumentRequest, 0)
	for rows.Next() {
		var req DocumentRequest
		if err := rows.Scan(&req.ID, &req.UUID, &req.ClientID, &req.IsCompleted, &req.LinkUsed, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListDocuments(ctx context.Context, requestID int64) ([]UploadedDocument, error) {
	rows, err := r.DB.QueryContext(ctx, selectDocument+"WHERE d.document_request_id = $1 ORDER BY d.id", requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]UploadedDocument, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetOwnedDocument(ctx context.Context, rmID, docID int64) (UploadedDocument, error) {
	const where = `JOIN document_requests dr ON dr.id = d.document_request_id
JOIN clients c ON c.id = dr.client_id
WHERE d.id = $1 AND c.rm_user_id = $2`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, selectDocument+where, docID, rmID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UploadedDocument{}, ErrNotFound
		}
		return UploadedDocument{}, err
	}
	return doc, nil
}

func (r *PGRepo) CompleteUpload(ctx context.Context, requestID int64, docs []UploadedDocument) ([]UploadedDocument, error) {
	out := make([]UploadedDocument, 0, len(docs))
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const insert = `
INSERT INTO uploaded_documents (document_request_id, storage_key, file_name, mime_type, size_bytes, page_count)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`
		for _, d := range docs {
			d.RequestID = requestID
			if err := tx.QueryRowContext(ctx, insert,
				requestID,
				d.StorageKey,
				d.FileName,
				d.MimeType,
				d.SizeBytes,
				nullableInt(d.PageCount),
			).Scan(&d.ID, &d.CreatedAt); err != nil {
				return err
			}
			out = append(out, d)
		}
		res, err := tx.ExecContext(ctx, `UPDATE document_requests SET is_completed = TRUE, link_used = TRUE WHERE id = $1`, requestID)
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
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepo) Delete(ctx context.Context, rmID, id int64) ([]string, error) {
	var keys []string
	err := db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		const owned = `
SELECT d.storage_key
FROM uploaded_documents d
JOIN document_requests dr ON dr.id = d.document_request_id
JOIN clients c ON c.id = dr.client_id
WHERE dr.id = $1 AND c.rm_user_id = $2`
		rows, err := tx.QueryContext(ctx, owned, id, rmID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return err
			}
			keys = append(keys, key)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		const del = `
DELETE FROM document_requests dr
USING clients c
WHERE dr.id = $1 AND c.id = dr.client_id AND c.rm_user_id = $2`
		res, err := tx.ExecContext(ctx, del, id, rmID)
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
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func scanRequest(row *sql.Row) (DocumentRequest, error) {
	var req DocumentRequest
	err := row.Scan(&req.ID, &req.UUID, &req.ClientID, &req.IsCompleted, &req.LinkUsed, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentRequest{}, ErrNotFound
		}
		return DocumentRequest{}, err
	}
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (UploadedDocument, error) {
	var d UploadedDocument
	var pages sql.NullInt32
	if err := row.Scan(&d.ID, &d.RequestID, &d.StorageKey, &d.FileName, &d.MimeType, &d.SizeBytes, &pages, &d.CreatedAt); err != nil {
		return UploadedDocument{}, err
	}
	if pages.Valid {
		n := int(pages.Int32)
		d.PageCount = &n
	}
	return d, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
