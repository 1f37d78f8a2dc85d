package views

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var files embed.FS

var funcs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006, 15:04 UTC")
	},
	"pages": func(n *int) string {
		if n == nil {
			return "-"
		}
		return itoa(*n)
	},
	"filesize": humanSize,
}

// Templates parses every embedded page. Each page is addressed by file name.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(files, "templates/*.html"))
}

// Install registers the page templates on r.
func Install(r *gin.Engine) {
	r.SetHTMLTemplate(Templates())
}
