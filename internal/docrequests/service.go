package docrequests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"docrequests-backend/internal/clients"
	"docrequests-backend/internal/rms"
	sharedmail "docrequests-backend/internal/shared/mail"
	"docrequests-backend/internal/shared/metrics"
	"docrequests-backend/internal/shared/storage/object"
	"docrequests-backend/internal/shared/telemetry"
	"docrequests-backend/internal/shared/util"
)

// MaxUploadFiles is the number of file slots on the upload form.
const MaxUploadFiles = 3

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = []string{"pdf"}

// Messages shown on the upload form.
const (
	MsgNoFiles         = "Please attach at least one PDF file."
	MsgEmptyFile       = "The submitted file is empty."
	MsgInvalidFileName = "Invalid file name."
)

// FileContent is the readable body of an uploaded file. multipart.File satisfies it.
type FileContent interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// File is one non-empty upload slot.
type File struct {
	Field   string
	Name    string
	Size    int64
	Content FileContent
}

// ClientDirectory resolves the clients requests belong to.
type ClientDirectory interface {
	GetOwned(ctx context.Context, rmID, id int64) (clients.Client, error)
	GetByID(ctx context.Context, id int64) (clients.Client, error)
}

// RMDirectory resolves the RM to notify.
type RMDirectory interface {
	GetByID(ctx context.Context, id int64) (rms.User, error)
}

// Detail is a request together with its client and documents.
type Detail struct {
	Request   DocumentRequest
	Client    clients.Client
	Documents []UploadedDocument
}

type Service struct {
	Repo    Repo
	Store   object.ObjectStore
	Mailer  sharedmail.Mailer
	Clients ClientDirectory
	RMs     RMDirectory
	BaseURL string
}

// ClientForRequest returns the owned client if requests may be issued to it.
func (s *Service) ClientForRequest(ctx context.Context, rmID, clientID int64) (clients.Client, error) {
	client, err := s.ownedClient(ctx, rmID, clientID)
	if err != nil {
		return clients.Client{}, err
	}
	if !client.IsEmailVerified {
		return client, ErrClientNotVerified
	}
	return client, nil
}

// Create issues a request for a verified client and mails the upload link.
func (s *Service) Create(ctx context.Context, rmID, clientID int64) (DocumentRequest, error) {
	client, err := s.ClientForRequest(ctx, rmID, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotVerified) {
			metrics.IncRequestsRejected()
		}
		return DocumentRequest{}, err
	}

	req, err := s.Repo.Create(ctx, rmID, DocumentRequest{
		UUID:      uuid.New(),
		ClientID:  client.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return DocumentRequest{}, fmt.Errorf("create request: %w", err)
	}
	metrics.IncRequestsCreated()
	telemetry.Info("request.created", map[string]any{
		"rm_id":        rmID,
		"client_id":    client.ID,
		"request_uuid": req.UUID.String(),
	})

	err = s.Mailer.Send(ctx, sharedmail.UploadRequestEmail(client.Email, s.UploadURL(req.UUID)))
	metrics.IncMail(err)
	if err != nil {
		return req, fmt.Errorf("send upload request email: %w", err)
	}
	return req, nil
}

// UploadURL is the public link embedded in the request email.
func (s *Service) UploadURL(id uuid.UUID) string {
	return strings.TrimRight(s.BaseURL, "/") + "/upload/" + id.String() + "/"
}

// ForUpload resolves a public request identifier. Malformed identifiers are not found.
func (s *Service) ForUpload(ctx context.Context, rawUUID string) (DocumentRequest, error) {
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return DocumentRequest{}, ErrNotFound
	}
	return s.Repo.GetByUUID(ctx, id)
}

// Upload stores the files, completes the request and notifies the RM.
// Any invalid slot rejects the whole submission before anything is stored.
func (s *Service) Upload(ctx context.Context, rawUUID string, files []File) ([]UploadedDocument, error) {
	req, err := s.ForUpload(ctx, rawUUID)
	if err != nil {
		return nil, err
	}
	names, verr := ValidateFiles(files)
	if verr != nil {
		metrics.IncUploadsRejected()
		return nil, verr
	}

	namespace := "documents/" + req.UUID.String()
	pending := make([]UploadedDocument, 0, len(files))
	stored := make([]string, 0, len(files))
	for i, f := range files {
		doc := UploadedDocument{FileName: names[i]}
		if n, ok := pageCount(f.Content, f.Size); ok {
			doc.PageCount = &n
		}
		if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
			s.discard(stored)
			return nil, fmt.Errorf("rewind %s: %w", f.Field, err)
		}
		key, size, mimeType, err := s.Store.Save(ctx, namespace, names[i], f.Content)
		if err != nil {
			s.discard(stored)
			return nil, fmt.Errorf("store %s: %w", f.Field, err)
		}
		stored = append(stored, key)
		doc.StorageKey = key
		doc.SizeBytes = size
		doc.MimeType = mimeType
		pending = append(pending, doc)
		metrics.ObserveDocumentStored(size)
	}

	docs, err := s.Repo.CompleteUpload(ctx, req.ID, pending)
	if err != nil {
		s.discard(stored)
		return nil, fmt.Errorf("record upload: %w", err)
	}
	metrics.IncUploadsCompleted()
	telemetry.Info("request.uploaded", map[string]any{
		"request_uuid": req.UUID.String(),
		"client_id":    req.ClientID,
		"documents":    len(docs),
	})

	if err := s.notifyRM(ctx, req); err != nil {
		return docs, err
	}
	return docs, nil
}

func (s *Service) notifyRM(ctx context.Context, req DocumentRequest) error {
	client, err := s.Clients.GetByID(ctx, req.ClientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}
	rm, err := s.RMs.GetByID(ctx, client.RMUserID)
	if err != nil {
		return fmt.Errorf("load rm: %w", err)
	}
	err = s.Mailer.Send(ctx, sharedmail.UploadCompletedEmail(rm.Email, client.Name))
	metrics.IncMail(err)
	if err != nil {
		return fmt.Errorf("send upload notification: %w", err)
	}
	return nil
}

// ValidateFiles checks every slot against the allow-list and returns the
// sanitized names in order.
func ValidateFiles(files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, &ValidationError{Form: MsgNoFiles}
	}
	if len(files) > MaxUploadFiles {
		return nil, &ValidationError{Form: fmt.Sprintf("Please attach at most %d files.", MaxUploadFiles)}
	}
	names := make([]string, len(files))
	fields := make(map[string]string)
	for i, f := range files {
		name, err := util.SanitizeFileName(f.Name)
		switch {
		case err != nil:
			fields[f.Field] = MsgInvalidFileName
		case !util.HasAllowedExtension(name, AllowedExtensions):
			fields[f.Field] = extensionMessage(name)
		case f.Size <= 0 || f.Content == nil:
			fields[f.Field] = MsgEmptyFile
		default:
			names[i] = name
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return names, nil
}

func extensionMessage(name string) string {
	ext := ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	return fmt.Sprintf("File extension %q is not allowed. Allowed extensions are: %s.", ext, strings.Join(AllowedExtensions, ", "))
}

// ListForClient returns an owned client's requests, newest first.
func (s *Service) ListForClient(ctx context.Context, rmID, clientID int64) (clients.Client, []DocumentRequest, error) {
	client, err := s.ownedClient(ctx, rmID, clientID)
	if err != nil {
		return clients.Client{}, nil, err
	}
	list, err := s.Repo.ListOwnedByClient(ctx, rmID, clientID)
	if err != nil {
		return clients.Client{}, nil, err
	}
	return client, list, nil
}

// Documents returns an owned request with its uploaded documents.
func (s *Service) Documents(ctx context.Context, rmID int64, rawUUID string) (Detail, error) {
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return Detail{}, ErrNotFound
	}
	req, err := s.Repo.GetOwnedByUUID(ctx, rmID, id)
	if err != nil {
		return Detail{}, err
	}
	client, err := s.ownedClient(ctx, rmID, req.ClientID)
	if err != nil {
		return Detail{}, err
	}
	docs, err := s.Repo.ListDocuments(ctx, req.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Request: req, Client: client, Documents: docs}, nil
}

// Get returns an owned request with its client.
func (s *Service) Get(ctx context.Context, rmID, id int64) (Detail, error) {
	req, err := s.Repo.GetOwnedByID(ctx, rmID, id)
	if err != nil {
		return Detail{}, err
	}
	client, err := s.ownedClient(ctx, rmID, req.ClientID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Request: req, Client: client}, nil
}

// Delete removes an owned request and, best-effort, its stored files.
func (s *Service) Delete(ctx context.Context, rmID, id int64) error {
	keys, err := s.Repo.Delete(ctx, rmID, id)
	if err != nil {
		return err
	}
	metrics.IncRequestsDeleted()
	telemetry.Info("request.deleted", map[string]any{"rm_id": rmID, "request_id": id, "documents": len(keys)})
	s.discard(keys)
	return nil
}

// OpenDocument streams an owned stored file. Callers close the reader.
func (s *Service) OpenDocument(ctx context.Context, rmID, docID int64) (UploadedDocument, io.ReadCloser, error) {
	doc, err := s.Repo.GetOwnedDocument(ctx, rmID, docID)
	if err != nil {
		return UploadedDocument{}, nil, err
	}
	body, err := s.Store.Open(ctx, doc.StorageKey)
	if err != nil {
		return UploadedDocument{}, nil, fmt.Errorf("open %s: %w", doc.StorageKey, err)
	}
	return doc, body, nil
}

func (s *Service) ownedClient(ctx context.Context, rmID, clientID int64) (clients.Client, error) {
	client, err := s.Clients.GetOwned(ctx, rmID, clientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return clients.Client{}, ErrNotFound
		}
		return clients.Client{}, err
	}
	return client, nil
}

// discard deletes stored objects on a detached context; failures are only logged.
func (s *Service) discard(keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.Store.Delete(ctx, key); err != nil {
			telemetry.Warn("object.delete_failed", map[string]any{"storage_key": key, "error": err})
		}
	}
}
