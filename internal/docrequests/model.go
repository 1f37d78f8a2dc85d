package docrequests

import (
	"time"

	"github.com/google/uuid"
)

// DocumentRequest is one upload link issued to a client. IsCompleted and
// LinkUsed only ever move from false to true.
type DocumentRequest struct {
	ID          int64
	UUID        uuid.UUID
	ClientID    int64
	IsCompleted bool
	LinkUsed    bool
	CreatedAt   time.Time
}

// UploadedDocument is a stored file attached to a request.
type UploadedDocument struct {
	ID         int64
	RequestID  int64
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	PageCount  *int
	CreatedAt  time.Time
}
