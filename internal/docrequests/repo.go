package docrequests

import (
	"context"

	"github.com/google/uuid"
)

// Repo persists requests and their documents. Methods taking rmID only see
// rows whose client belongs to that RM and return ErrNotFound otherwise.
type Repo interface {
	Create(ctx context.Context, rmID int64, req DocumentRequest) (DocumentRequest, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (DocumentRequest, error)
	GetOwnedByUUID(ctx context.Context, rmID int64, id uuid.UUID) (DocumentRequest, error)
	GetOwnedByID(ctx context.Context, rmID, id int64) (DocumentRequest, error)
	ListOwnedByClient(ctx context.Context, rmID, clientID int64) ([]DocumentRequest, error)
	ListDocuments(ctx context.Context, requestID int64) ([]UploadedDocument, error)
	GetOwnedDocument(ctx context.Context, rmID, docID int64) (UploadedDocument, error)
	// CompleteUpload stores docs and sets both request flags atomically.
	CompleteUpload(ctx context.Context, requestID int64, docs []UploadedDocument) ([]UploadedDocument, error)
	// Delete removes an owned request with its documents and returns their storage keys.
	Delete(ctx context.Context, rmID, id int64) ([]string, error)
}
