package docrequests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errDuplicateUUID = errors.New("duplicate request uuid")

// MemoryRepo keeps requests in process. The owning RM is recorded at creation.
type MemoryRepo struct {
	mu        sync.RWMutex
	nextReqID int64
	nextDocID int64
	requests  map[int64]DocumentRequest
	owners    map[int64]int64
	docs      map[int64][]UploadedDocument
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		requests: make(map[int64]DocumentRequest),
		owners:   make(map[int64]int64),
		docs:     make(map[int64][]UploadedDocument),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, rmID int64, req DocumentRequest) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.UUID == req.UUID {
			return DocumentRequest{}, errDuplicateUUID
		}
	}
	r.nextReqID++
	req.ID = r.nextReqID
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	r.requests[req.ID] = req
	r.owners[req.ID] = rmID
	return req, nil
}

func (r *MemoryRepo) GetByUUID(ctx context.Context, id uuid.UUID) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, req := range r.requests {
		if req.UUID == id {
			return req, nil
		}
	}
	return DocumentRequest{}, ErrNotFound
}

func (r *MemoryRepo) GetOwnedByUUID(ctx context.Context, rmID int64, id uuid.UUID) (DocumentRequest, error) {
	req, err := r.GetByUUID(ctx, id)
	if err != nil {
		return DocumentRequest{}, err
	}
	if !r.ownedBy(req.ID, rmID) {
		return DocumentRequest{}, ErrNotFound
	}
	return req, nil
}

func (r *MemoryRepo) GetOwnedByID(ctx context.Context, rmID, id int64) (DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return DocumentRequest{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok || r.owners[id] != rmID {
		return DocumentRequest{}, ErrNotFound
	}
	return req, nil
}

func (r *MemoryRepo) ListOwnedByClient(ctx context.Context, rmID, clientID int64) ([]DocumentRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DocumentRequest, 0)
	for id, req := range r.requests {
		if req.ClientID == clientID && r.owners[id] == rmID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) ListDocuments(ctx context.Context, requestID int64) ([]UploadedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UploadedDocument, len(r.docs[requestID]))
	copy(out, r.docs[requestID])
	return out, nil
}

func (r *MemoryRepo) GetOwnedDocument(ctx context.Context, rmID, docID int64) (UploadedDocument, error) {
	if err := ctx.Err(); err != nil {
		return UploadedDocument{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for reqID, docs := range r.docs {
		for _, d := range docs {
			if d.ID == docID {
				if r.owners[reqID] != rmID {
					return UploadedDocument{}, ErrNotFound
				}
				return d, nil
			}
		}
	}
	return UploadedDocument{}, ErrNotFound
}

func (r *MemoryRepo) CompleteUpload(ctx context.Context, requestID int64, docs []UploadedDocument) ([]UploadedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	now := time.Now().UTC()
	out := make([]UploadedDocument, 0, len(docs))
	for _, d := range docs {
		r.nextDocID++
		d.ID = r.nextDocID
		d.RequestID = requestID
		d.CreatedAt = now
		out = append(out, d)
	}
	r.docs[requestID] = append(r.docs[requestID], out...)
	req.IsCompleted = true
	req.LinkUsed = true
	r.requests[requestID] = req
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, rmID, id int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok || r.owners[id] != rmID {
		return nil, ErrNotFound
	}
	keys := make([]string, 0, len(r.docs[id]))
	for _, d := range r.docs[id] {
		keys = append(keys, d.StorageKey)
	}
	delete(r.requests, id)
	delete(r.owners, id)
	delete(r.docs, id)
	return keys, nil
}

// ownedBy must be called without r.mu held.
func (r *MemoryRepo) ownedBy(requestID, rmID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[requestID] == rmID
}
