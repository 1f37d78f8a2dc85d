package docrequests

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/respond"
	"docrequests-backend/internal/shared/telemetry"
	"docrequests-backend/internal/shared/util"
)

const (
	msgNotVerified = "Client's email not verified. Cannot create a document request."
	msgDeleted     = "Document request deleted successfully!"
	msgTooLarge    = "The uploaded files are too large."
	msgBadForm     = "The upload could not be read. Please try again."
)

const defaultMaxUploadBytes = 30 << 20

type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches the RM-only request routes.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/client/:id/requests", h.listForClient)
	rg.GET("/create_request/:client_id", h.createForm)
	rg.POST("/create_request/:client_id", h.create)
	rg.GET("/view_uploaded_documents/:request_uuid", h.documents)
	rg.GET("/document_request/delete/:id", h.confirmDelete)
	rg.POST("/document_request/delete/:id", h.delete)
	rg.GET("/documents/:id/download", h.download)
}

// RegisterPublicRoutes attaches the client-facing upload routes.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes, limit gin.HandlerFunc) {
	r.GET("/upload/:request_uuid", limit, h.uploadForm)
	r.POST("/upload/:request_uuid", limit, h.upload)
	r.GET("/upload_success", h.uploadSuccess)
	r.GET("/error", h.errorPage)
}

func (h *Handler) listForClient(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	clientID, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	client, list, err := h.Svc.ListForClient(c.Request.Context(), p.UserID, clientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.ClientIDKey, client.ID)
	respond.HTML(c, http.StatusOK, "client_document_requests.html", gin.H{
		"Title":    "Document requests",
		"Client":   client,
		"Requests": list,
	})
}

func (h *Handler) createForm(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	clientID, ok := util.ParseID(c.Param("client_id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	client, err := h.Svc.ClientForRequest(c.Request.Context(), p.UserID, clientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.HTML(c, http.StatusOK, "create_request.html", gin.H{
		"Title":  "Create request",
		"Client": client,
	})
}

func (h *Handler) create(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	clientID, ok := util.ParseID(c.Param("client_id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	req, err := h.Svc.Create(c.Request.Context(), p.UserID, clientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.ClientIDKey, clientID)
	c.Set(middleware.RequestUUIDKey, req.UUID.String())
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) documents(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	detail, err := h.Svc.Documents(c.Request.Context(), p.UserID, c.Param("request_uuid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.RequestUUIDKey, detail.Request.UUID.String())
	respond.HTML(c, http.StatusOK, "view_uploaded_documents.html", gin.H{
		"Title":     "Uploaded documents",
		"Request":   detail.Request,
		"Client":    detail.Client,
		"Documents": detail.Documents,
	})
}

func (h *Handler) confirmDelete(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	detail, err := h.Svc.Get(c.Request.Context(), p.UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.HTML(c, http.StatusOK, "confirm_delete.html", gin.H{
		"Title":   "Delete request",
		"Request": detail.Request,
		"Client":  detail.Client,
	})
}

func (h *Handler) delete(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), p.UserID, id); err != nil {
		h.fail(c, err)
		return
	}
	if err := middleware.AddFlash(c, msgDeleted); err != nil {
		telemetry.Warn("session.flash_failed", map[string]any{"error": err})
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) download(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	id, ok := util.ParseID(c.Param("id"))
	if !ok {
		respond.NotFound(c)
		return
	}
	doc, body, err := h.Svc.OpenDocument(c.Request.Context(), p.UserID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer body.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, doc.SizeBytes, contentType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}),
	})
}

type slotView struct {
	Field string
	Label string
	Error string
}

func (h *Handler) uploadForm(c *gin.Context) {
	req, err := h.Svc.ForUpload(c.Request.Context(), c.Param("request_uuid"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.RequestUUIDKey, req.UUID.String())
	h.renderUpload(c, http.StatusOK, req.UUID.String(), nil)
}

func (h *Handler) upload(c *gin.Context) {
	rawUUID := c.Param("request_uuid")
	req, err := h.Svc.ForUpload(c.Request.Context(), rawUUID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set(middleware.RequestUUIDKey, req.UUID.String())

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.renderUpload(c, http.StatusRequestEntityTooLarge, req.UUID.String(), &ValidationError{Form: msgTooLarge})
			return
		}
		h.renderUpload(c, http.StatusBadRequest, req.UUID.String(), &ValidationError{Form: msgBadForm})
		return
	}

	files, closeAll, err := collectFiles(form)
	defer closeAll()
	if err != nil {
		respond.Internal(c, err)
		return
	}

	if _, err := h.Svc.Upload(c.Request.Context(), rawUUID, files); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.renderUpload(c, http.StatusBadRequest, req.UUID.String(), verr)
			return
		}
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/upload_success")
}

func (h *Handler) uploadSuccess(c *gin.Context) {
	respond.HTML(c, http.StatusOK, "upload_success.html", gin.H{"Title": "Upload complete"})
}

func (h *Handler) errorPage(c *gin.Context) {
	respond.HTML(c, http.StatusOK, "error.html", gin.H{
		"Title":   "Error",
		"Message": util.CleanText(c.Query("error_message")),
	})
}

func (h *Handler) renderUpload(c *gin.Context, status int, requestUUID string, verr *ValidationError) {
	slots := make([]slotView, MaxUploadFiles)
	for i := range slots {
		field := SlotField(i)
		slots[i] = slotView{Field: field, Label: "File " + strconv.Itoa(i+1)}
		if verr != nil {
			slots[i].Error = verr.Fields[field]
		}
	}
	formError := ""
	if verr != nil {
		formError = verr.Form
	}
	respond.HTML(c, status, "upload.html", gin.H{
		"Title":       "Upload documents",
		"RequestUUID": requestUUID,
		"Slots":       slots,
		"FormError":   formError,
	})
}

// fail maps service errors onto responses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.NotFound(c)
	case errors.Is(err, ErrClientNotVerified):
		c.Redirect(http.StatusSeeOther, "/error?error_message="+url.QueryEscape(msgNotVerified))
		c.Abort()
	default:
		respond.Internal(c, err)
	}
}

// SlotField names the i-th (zero-based) upload slot.
func SlotField(i int) string {
	return fmt.Sprintf("file_%d", i+1)
}

func collectFiles(form *multipart.Form) ([]File, func(), error) {
	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	files := make([]File, 0, MaxUploadFiles)
	for i := 0; i < MaxUploadFiles; i++ {
		field := SlotField(i)
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open %s: %w", field, err)
		}
		opened = append(opened, f)
		files = append(files, File{Field: field, Name: fh.Filename, Size: fh.Size, Content: f})
	}
	return files, closeAll, nil
}
