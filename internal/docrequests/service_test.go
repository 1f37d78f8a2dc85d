package docrequests

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"docrequests-backend/internal/clients"
	"docrequests-backend/internal/rms"
	sharedmail "docrequests-backend/internal/shared/mail"
	localstore "docrequests-backend/internal/shared/storage/object/local"
)

type fixture struct {
	svc      *Service
	repo     *MemoryRepo
	clients  *clients.MemoryRepo
	mail     *sharedmail.Recorder
	storeDir string
	rm       rms.User
	other    rms.User
	client   clients.Client
}

func newFixture(t *testing.T, verified bool) *fixture {
	t.Helper()
	ctx := context.Background()
	users := rms.NewMemoryRepo()
	rm, err := users.Create(ctx, rms.User{Username: "rm1", Email: "rm1@example.com", IsSuperuser: true})
	if err != nil {
		t.Fatalf("create rm: %v", err)
	}
	other, err := users.Create(ctx, rms.User{Username: "rm2", Email: "rm2@example.com", IsSuperuser: true})
	if err != nil {
		t.Fatalf("create other rm: %v", err)
	}
	clientRepo := clients.NewMemoryRepo()
	client, err := clientRepo.Create(ctx, clients.Client{Name: "Acme", Email: "acme@example.com", RMUserID: rm.ID})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if verified {
		if err := clientRepo.MarkVerified(ctx, client.ID); err != nil {
			t.Fatalf("verify client: %v", err)
		}
		client.IsEmailVerified = true
	}
	dir := t.TempDir()
	repo := NewMemoryRepo()
	rec := &sharedmail.Recorder{}
	svc := &Service{
		Repo:    repo,
		Store:   localstore.New(dir),
		Mailer:  rec,
		Clients: clientRepo,
		RMs:     users,
		BaseURL: "http://testserver",
	}
	return &fixture{svc: svc, repo: repo, clients: clientRepo, mail: rec, storeDir: dir, rm: rm, other: other, client: client}
}

func pdfFile(field, name string) File {
	data := buildPDF(1)
	return File{Field: field, Name: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func textFile(field, name string) File {
	data := []byte("plain text")
	return File{Field: field, Name: name, Size: int64(len(data)), Content: bytes.NewReader(data)}
}

func storedFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk store: %v", err)
	}
	return n
}

func TestCreateRequiresVerifiedClient(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if !errors.Is(err, ErrClientNotVerified) {
		t.Fatalf("expected ErrClientNotVerified, got %v", err)
	}
	list, _ := f.repo.ListOwnedByClient(context.Background(), f.rm.ID, f.client.ID)
	if len(list) != 0 {
		t.Fatalf("expected no requests, got %d", len(list))
	}
	if len(f.mail.Sent()) != 0 {
		t.Fatalf("expected no email")
	}
}

func TestCreateSendsUploadLink(t *testing.T) {
	f := newFixture(t, true)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.UUID == uuid.Nil || req.IsCompleted || req.LinkUsed || req.CreatedAt.IsZero() {
		t.Fatalf("unexpected request: %+v", req)
	}
	sent := f.mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	want := "Please click here http://testserver/upload/" + req.UUID.String() + "/ for instructions on document upload"
	if sent[0].Subject != "Document Upload Request" || sent[0].Body != want || sent[0].To[0] != "acme@example.com" {
		t.Fatalf("unexpected email: %+v", sent[0])
	}
}

func TestCreateForeignClientNotFound(t *testing.T) {
	f := newFixture(t, true)
	if _, err := f.svc.Create(context.Background(), f.other.ID, f.client.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestIdentifiersAreUnique(t *testing.T) {
	f := newFixture(t, true)
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 50; i++ {
		req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if seen[req.UUID] {
			t.Fatalf("duplicate uuid %s", req.UUID)
		}
		seen[req.UUID] = true
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newFixture(t, true)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.Upload(context.Background(), req.UUID.String(), []File{
		pdfFile("file_1", "statement.pdf"),
		textFile("file_2", "notes.txt"),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(verr.Fields["file_2"], `"txt" is not allowed`) {
		t.Fatalf("unexpected field errors: %v", verr.Fields)
	}
	if _, ok := verr.Fields["file_1"]; ok {
		t.Fatalf("expected valid slot to have no error")
	}

	docs, _ := f.repo.ListDocuments(context.Background(), req.ID)
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
	got, _ := f.repo.GetByUUID(context.Background(), req.UUID)
	if got.IsCompleted || got.LinkUsed {
		t.Fatalf("expected flags untouched: %+v", got)
	}
	if n := storedFiles(t, f.storeDir); n != 0 {
		t.Fatalf("expected nothing stored, got %d files", n)
	}
}

func TestUploadRequiresAFile(t *testing.T) {
	f := newFixture(t, true)
	req, _ := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	_, err := f.svc.Upload(context.Background(), req.UUID.String(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Form != MsgNoFiles {
		t.Fatalf("expected no-files error, got %v", err)
	}
}

func TestUploadStoresEachFileAndCompletes(t *testing.T) {
	for n := 1; n <= MaxUploadFiles; n++ {
		f := newFixture(t, true)
		req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		files := make([]File, 0, n)
		for i := 0; i < n; i++ {
			files = append(files, pdfFile(SlotField(i), "doc.PDF"))
		}

		docs, err := f.svc.Upload(context.Background(), req.UUID.String(), files)
		if err != nil {
			t.Fatalf("upload %d files: %v", n, err)
		}
		if len(docs) != n {
			t.Fatalf("expected %d documents, got %d", n, len(docs))
		}
		for _, d := range docs {
			if !strings.HasPrefix(d.StorageKey, "documents/"+req.UUID.String()+"/") {
				t.Fatalf("unexpected storage key %q", d.StorageKey)
			}
			if d.MimeType != "application/pdf" || d.SizeBytes == 0 {
				t.Fatalf("unexpected document metadata: %+v", d)
			}
		}
		got, _ := f.repo.GetByUUID(context.Background(), req.UUID)
		if !got.IsCompleted || !got.LinkUsed {
			t.Fatalf("expected request completed: %+v", got)
		}
		if stored := storedFiles(t, f.storeDir); stored != n {
			t.Fatalf("expected %d stored files, got %d", n, stored)
		}

		sent := f.mail.Sent()
		last := sent[len(sent)-1]
		if last.Subject != "Document Successfully Uploaded" || last.To[0] != "rm1@example.com" ||
			last.Body != "A document for Acme was successfully uploaded." {
			t.Fatalf("unexpected notification: %+v", last)
		}
	}
}

func TestUploadUnknownRequest(t *testing.T) {
	f := newFixture(t, true)
	for _, raw := range []string{uuid.NewString(), "not-a-uuid", ""} {
		if _, err := f.svc.Upload(context.Background(), raw, []File{pdfFile("file_1", "a.pdf")}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", raw, err)
		}
	}
}

func TestUploadReuseKeepsFlags(t *testing.T) {
	f := newFixture(t, true)
	req, _ := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Upload(context.Background(), req.UUID.String(), []File{pdfFile("file_1", "a.pdf")}); err != nil {
			t.Fatalf("upload %d: %v", i+1, err)
		}
	}
	got, _ := f.repo.GetByUUID(context.Background(), req.UUID)
	if !got.IsCompleted || !got.LinkUsed {
		t.Fatalf("expected flags to stay set: %+v", got)
	}
	docs, _ := f.repo.ListDocuments(context.Background(), req.ID)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

type failingCompleteRepo struct {
	*MemoryRepo
}

func (failingCompleteRepo) CompleteUpload(context.Context, int64, []UploadedDocument) ([]UploadedDocument, error) {
	return nil, errors.New("db down")
}

func TestUploadDiscardsObjectsWhenRecordFails(t *testing.T) {
	f := newFixture(t, true)
	req, _ := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	f.svc.Repo = failingCompleteRepo{f.repo}

	_, err := f.svc.Upload(context.Background(), req.UUID.String(), []File{
		pdfFile("file_1", "a.pdf"),
		pdfFile("file_2", "b.pdf"),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if n := storedFiles(t, f.storeDir); n != 0 {
		t.Fatalf("expected stored objects to be discarded, got %d", n)
	}
}

func TestUploadSurfacesMailFailure(t *testing.T) {
	f := newFixture(t, true)
	req, _ := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	f.mail.Err = errors.New("smtp down")

	if _, err := f.svc.Upload(context.Background(), req.UUID.String(), []File{pdfFile("file_1", "a.pdf")}); err == nil {
		t.Fatalf("expected mail failure to surface")
	}
	got, _ := f.repo.GetByUUID(context.Background(), req.UUID)
	if !got.IsCompleted {
		t.Fatalf("expected upload to be recorded before notification")
	}
}

func TestCrossRMAccessIsNotFound(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	req, _ := f.svc.Create(ctx, f.rm.ID, f.client.ID)
	docs, err := f.svc.Upload(ctx, req.UUID.String(), []File{pdfFile("file_1", "a.pdf")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, _, err := f.svc.ListForClient(ctx, f.other.ID, f.client.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("list: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Documents(ctx, f.other.ID, req.UUID.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("documents: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.other.ID, req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, _, err := f.svc.OpenDocument(ctx, f.other.ID, docs[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("open: expected ErrNotFound, got %v", err)
	}
	if err := f.svc.Delete(ctx, f.other.ID, req.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
	if _, err := f.repo.GetByUUID(ctx, req.UUID); err != nil {
		t.Fatalf("expected request to survive foreign delete: %v", err)
	}
}

func TestOwnerReadsAndDeletes(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	req, _ := f.svc.Create(ctx, f.rm.ID, f.client.ID)
	docs, err := f.svc.Upload(ctx, req.UUID.String(), []File{pdfFile("file_1", "a.pdf")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	detail, err := f.svc.Documents(ctx, f.rm.ID, req.UUID.String())
	if err != nil || len(detail.Documents) != 1 || detail.Client.ID != f.client.ID {
		t.Fatalf("unexpected detail: %+v %v", detail, err)
	}

	_, body, err := f.svc.OpenDocument(ctx, f.rm.ID, docs[0].ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if !bytes.HasPrefix(data, []byte("%PDF-1.4")) {
		t.Fatalf("unexpected stored content")
	}

	if err := f.svc.Delete(ctx, f.rm.ID, req.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.repo.GetByUUID(ctx, req.UUID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected request gone, got %v", err)
	}
	if n := storedFiles(t, f.storeDir); n != 0 {
		t.Fatalf("expected stored files removed, got %d", n)
	}
}

func TestUploadAcceptsDoubleDotInName(t *testing.T) {
	f := newFixture(t, true)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	docs, err := f.svc.Upload(context.Background(), req.UUID.String(), []File{pdfFile("file_1", "statement..2024.pdf")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(docs) != 1 || docs[0].FileName != "statement..2024.pdf" {
		t.Fatalf("unexpected documents %+v", docs)
	}
}

func TestValidateFiles(t *testing.T) {
	cases := []struct {
		name  string
		file  File
		field string
		want  string
	}{
		{"uppercase pdf ok", pdfFile("file_1", "A.PDF"), "file_1", ""},
		{"no extension", textFile("file_1", "README"), "file_1", `File extension "" is not allowed. Allowed extensions are: pdf.`},
		{"double dot inside name ok", pdfFile("file_1", "statement..2024.pdf"), "file_1", ""},
		{"separators flattened ok", pdfFile("file_2", "../etc/passwd.pdf"), "file_2", ""},
		{"bare parent dir", pdfFile("file_2", ".."), "file_2", MsgInvalidFileName},
		{"empty", File{Field: "file_3", Name: "empty.pdf", Content: bytes.NewReader(nil)}, "file_3", MsgEmptyFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateFiles([]File{tc.file})
			if tc.want == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Fields[tc.field] != tc.want {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}
