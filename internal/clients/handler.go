package clients

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"docrequests-backend/internal/shared/server/middleware"
	"docrequests-backend/internal/shared/server/respond"
)

// Verification responses are plain text.
const (
	MsgVerified      = "Email successfully verified!"
	MsgInvalidLink   = "Invalid or expired verification link."
	MsgClientMissing = "Client does not exist."
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the RM-only client routes.
func (h *Handler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/dashboard", h.dashboard)
	rg.GET("/add_client", h.addClientForm)
	rg.POST("/add_client", h.addClient)
}

// RegisterPublicRoutes attaches the verification link route.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes, limit gin.HandlerFunc) {
	r.GET("/verify_email/:signed_token", limit, h.verify)
}

type clientForm struct {
	Name  string `form:"name" binding:"required,max=100"`
	Email string `form:"email" binding:"required,email"`
}

func (h *Handler) dashboard(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	list, err := h.Svc.List(c.Request.Context(), p.UserID)
	if err != nil {
		respond.Internal(c, err)
		return
	}
	respond.HTML(c, http.StatusOK, "dashboard.html", gin.H{
		"Title":   "Dashboard",
		"Clients": list,
	})
}

func (h *Handler) addClientForm(c *gin.Context) {
	h.renderForm(c, http.StatusOK, clientForm{}, map[string]string{})
}

func (h *Handler) addClient(c *gin.Context) {
	p, _ := middleware.PrincipalFromContext(c)
	var form clientForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderForm(c, http.StatusBadRequest, form, bindingErrors(err))
		return
	}
	client, err := h.Svc.Create(c.Request.Context(), p.UserID, NewClient{Name: form.Name, Email: form.Email})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.renderForm(c, http.StatusBadRequest, form, verr.Fields)
			return
		}
		respond.Internal(c, err)
		return
	}
	c.Set(middleware.ClientIDKey, client.ID)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) verify(c *gin.Context) {
	client, err := h.Svc.Verify(c.Request.Context(), c.Param("signed_token"))
	switch {
	case err == nil:
		c.Set(middleware.ClientIDKey, client.ID)
		respond.Text(c, http.StatusOK, MsgVerified)
	case errors.Is(err, ErrInvalidToken):
		respond.Text(c, http.StatusBadRequest, MsgInvalidLink)
	case errors.Is(err, ErrNotFound):
		respond.Text(c, http.StatusNotFound, MsgClientMissing)
	default:
		respond.Internal(c, err)
	}
}

func (h *Handler) renderForm(c *gin.Context, status int, form clientForm, errs map[string]string) {
	respond.HTML(c, status, "add_client.html", gin.H{
		"Title":  "Add client",
		"Form":   form,
		"Errors": errs,
	})
}

func bindingErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["name"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := "name"
		if fe.Field() == "Email" {
			field = "email"
		}
		switch fe.Tag() {
		case "required":
			out[field] = MsgRequired
		case "email":
			out[field] = MsgInvalidEmail
		case "max":
			out[field] = MsgNameTooLong
		}
	}
	return out
}
