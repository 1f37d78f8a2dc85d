package docrequests

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/views"
)

func newRequestsRouter(t *testing.T, f *fixture, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	views.Install(r)
	r.Use(middleware.Sessions(middleware.NewCookieStore("test-secret", false)))
	r.POST("/test-login/:id", func(c *gin.Context) {
		id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		if err := middleware.SignIn(c, middleware.Principal{UserID: id, Username: "rm"}); err != nil {
			t.Fatalf("sign in: %v", err)
		}
		c.Status(http.StatusNoContent)
	})
	h := NewHandler(f.svc, maxUpload)
	h.RegisterPublicRoutes(r, func(c *gin.Context) { c.Next() })
	h.RegisterRoutes(r.Group("/", middleware.RequireRM()))
	return r
}

func loginAs(t *testing.T, r http.Handler, rmID int64) []*http.Cookie {
	t.Helper()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/test-login/"+strconv.FormatInt(rmID, 10), nil))
	return resp.Result().Cookies()
}

func serve(r http.Handler, req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func multipartUpload(t *testing.T, path string, files map[string][]byte, names map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for field, data := range files {
		fw, err := w.CreateFormFile(field, names[field])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateRequestUnverifiedRedirectsToError(t *testing.T) {
	f := newFixture(t, false)
	r := newRequestsRouter(t, f, 0)
	cookies := loginAs(t, r, f.rm.ID)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp := serve(r, httptest.NewRequest(method, "/create_request/"+strconv.FormatInt(f.client.ID, 10), nil), cookies)
		if resp.Code != http.StatusSeeOther {
			t.Fatalf("%s: expected redirect, got %d", method, resp.Code)
		}
		loc, _ := url.Parse(resp.Header().Get("Location"))
		if loc.Path != "/error" || loc.Query().Get("error_message") != msgNotVerified {
			t.Fatalf("%s: unexpected redirect %s", method, loc)
		}
	}
	list, _ := f.repo.ListOwnedByClient(context.Background(), f.rm.ID, f.client.ID)
	if len(list) != 0 {
		t.Fatalf("expected no request rows")
	}

	errPage := serve(r, httptest.NewRequest(http.MethodGet, "/error?error_message="+url.QueryEscape(msgNotVerified), nil), nil)
	if !strings.Contains(errPage.Body.String(), "Client&#39;s email not verified. Cannot create a document request.") {
		t.Fatalf("expected message on error page, got %s", errPage.Body.String())
	}
}

func TestCreateRequestForeignClientIs404(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	cookies := loginAs(t, r, f.other.ID)

	resp := serve(r, httptest.NewRequest(http.MethodPost, "/create_request/"+strconv.FormatInt(f.client.ID, 10), nil), cookies)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	resp = serve(r, httptest.NewRequest(http.MethodGet, "/create_request/abc", nil), cookies)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", resp.Code)
	}
}

func TestUploadFlowOverHTTP(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	cookies := loginAs(t, r, f.rm.ID)

	create := serve(r, httptest.NewRequest(http.MethodPost, "/create_request/"+strconv.FormatInt(f.client.ID, 10), nil), cookies)
	if create.Code != http.StatusSeeOther {
		t.Fatalf("create: expected redirect, got %d", create.Code)
	}
	list, _ := f.repo.ListOwnedByClient(context.Background(), f.rm.ID, f.client.ID)
	if len(list) != 1 {
		t.Fatalf("expected one request, got %d", len(list))
	}
	id := list[0].UUID.String()

	form := serve(r, httptest.NewRequest(http.MethodGet, "/upload/"+id, nil), nil)
	if form.Code != http.StatusOK || !strings.Contains(form.Body.String(), `name="file_3"`) {
		t.Fatalf("expected upload form with three slots, got %d", form.Code)
	}

	bad := serve(r, multipartUpload(t, "/upload/"+id,
		map[string][]byte{"file_1": []byte("hello")},
		map[string]string{"file_1": "hello.txt"}), nil)
	if bad.Code != http.StatusBadRequest || !strings.Contains(bad.Body.String(), "is not allowed") {
		t.Fatalf("expected validation error, got %d %s", bad.Code, bad.Body.String())
	}

	pdf := buildPDF(2)
	ok := serve(r, multipartUpload(t, "/upload/"+id,
		map[string][]byte{"file_1": pdf, "file_3": pdf},
		map[string]string{"file_1": "one.pdf", "file_3": "three.pdf"}), nil)
	if ok.Code != http.StatusSeeOther || ok.Header().Get("Location") != "/upload_success" {
		t.Fatalf("expected success redirect, got %d %s", ok.Code, ok.Body.String())
	}

	view := serve(r, httptest.NewRequest(http.MethodGet, "/view_uploaded_documents/"+id, nil), cookies)
	if view.Code != http.StatusOK || !strings.Contains(view.Body.String(), "three.pdf") {
		t.Fatalf("expected documents page, got %d", view.Code)
	}

	docs, _ := f.repo.ListDocuments(context.Background(), list[0].ID)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	dl := serve(r, httptest.NewRequest(http.MethodGet, "/documents/"+strconv.FormatInt(docs[0].ID, 10)+"/download", nil), cookies)
	if dl.Code != http.StatusOK || !bytes.Equal(dl.Body.Bytes(), pdf) {
		t.Fatalf("unexpected download: %d", dl.Code)
	}
	if !strings.Contains(dl.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("expected attachment disposition")
	}

	foreign := loginAs(t, r, f.other.ID)
	if resp := serve(r, httptest.NewRequest(http.MethodGet, "/view_uploaded_documents/"+id, nil), foreign); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign RM, got %d", resp.Code)
	}
}

func TestUploadUnknownUUIDIs404(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	for _, path := range []string{"/upload/not-a-uuid", "/upload/0b6f5a5e-2c7e-4bb3-9a43-1f0f4d6c6e10"} {
		if resp := serve(r, httptest.NewRequest(http.MethodGet, path, nil), nil); resp.Code != http.StatusNotFound {
			t.Fatalf("GET %s: expected 404, got %d", path, resp.Code)
		}
		req := multipartUpload(t, path, map[string][]byte{"file_1": buildPDF(1)}, map[string]string{"file_1": "a.pdf"})
		if resp := serve(r, req, nil); resp.Code != http.StatusNotFound {
			t.Fatalf("POST %s: expected 404, got %d", path, resp.Code)
		}
	}
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 256)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	big := bytes.Repeat([]byte("x"), 4096)
	resp := serve(r, multipartUpload(t, "/upload/"+req.UUID.String(),
		map[string][]byte{"file_1": big}, map[string]string{"file_1": "big.pdf"}), nil)
	if resp.Code != http.StatusRequestEntityTooLarge && resp.Code != http.StatusBadRequest {
		t.Fatalf("expected oversized upload to be rejected, got %d", resp.Code)
	}
	docs, _ := f.repo.ListDocuments(context.Background(), req.ID)
	if len(docs) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestDeleteConfirmAndFlash(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	r.GET("/dashboard", func(c *gin.Context) {
		c.String(http.StatusOK, strings.Join(middleware.Flashes(c), ","))
	})
	cookies := loginAs(t, r, f.rm.ID)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path := "/document_request/delete/" + strconv.FormatInt(req.ID, 10)

	if resp := serve(r, httptest.NewRequest(http.MethodGet, path, nil), loginAs(t, r, f.other.ID)); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign confirm, got %d", resp.Code)
	}
	confirm := serve(r, httptest.NewRequest(http.MethodGet, path, nil), cookies)
	if confirm.Code != http.StatusOK || !strings.Contains(confirm.Body.String(), req.UUID.String()) {
		t.Fatalf("expected confirm page, got %d", confirm.Code)
	}

	del := serve(r, httptest.NewRequest(http.MethodPost, path, nil), cookies)
	if del.Code != http.StatusSeeOther || del.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect, got %d", del.Code)
	}
	dash := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil), del.Result().Cookies())
	if dash.Body.String() != msgDeleted {
		t.Fatalf("expected flash %q, got %q", msgDeleted, dash.Body.String())
	}
	if _, err := f.repo.GetByUUID(context.Background(), req.UUID); err == nil {
		t.Fatalf("expected request deleted")
	}
}

func TestListForClientIsScopedToOwner(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	path := "/client/" + strconv.FormatInt(f.client.ID, 10) + "/requests"

	owner := serve(r, httptest.NewRequest(http.MethodGet, path, nil), loginAs(t, r, f.rm.ID))
	if owner.Code != http.StatusOK || !strings.Contains(owner.Body.String(), req.UUID.String()) {
		t.Fatalf("expected request listing, got %d", owner.Code)
	}
	foreign := serve(r, httptest.NewRequest(http.MethodGet, path, nil), loginAs(t, r, f.other.ID))
	if foreign.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign RM, got %d", foreign.Code)
	}
	anon := serve(r, httptest.NewRequest(http.MethodGet, path, nil), nil)
	if anon.Code != http.StatusSeeOther {
		t.Fatalf("expected login redirect, got %d", anon.Code)
	}
}

func TestUploadSkipsBlankBrowserSlots(t *testing.T) {
	f := newFixture(t, true)
	r := newRequestsRouter(t, f, 0)
	req, err := f.svc.Create(context.Background(), f.rm.ID, f.client.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pdf := buildPDF(1)
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part := func(field, filename string, data []byte) {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", "application/octet-stream")
		pw, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := pw.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	part("file_1", "one.pdf", pdf)
	part("file_2", "", nil)
	part("file_3", "three.pdf", pdf)
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/upload/"+req.UUID.String(), body)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp := serve(r, httpReq, nil)
	if resp.Code != http.StatusSeeOther || resp.Header().Get("Location") != "/upload_success" {
		t.Fatalf("expected success redirect, got %d %s", resp.Code, resp.Body.String())
	}
	docs, _ := f.repo.ListDocuments(context.Background(), req.ID)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	names := map[string]bool{}
	for _, d := range docs {
		names[d.FileName] = true
	}
	if !names["one.pdf"] || !names["three.pdf"] {
		t.Fatalf("unexpected documents %+v", docs)
	}
}
