package admin

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = []string{
	"login", "dashboard", "requests", "request_detail", "migrations", "cache", "jobs",
}

func parsePages() map[string]*template.Template {
	funcs := template.FuncMap{
		"statusClass": func(code int) string {
			switch {
			case code >= 500:
				return "err"
			case code >= 400:
				return "warn"
			default:
				return "ok"
			}
		},
		"truncate": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			return s[:n] + "…"
		},
		"add": func(a, b int) int { return a + b },
		"printf": fmt.Sprintf,
	}
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		pages[name] = template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return pages
}

func (a *Admin) render(w http.ResponseWriter, page string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.pages[page].ExecuteTemplate(w, "layout.html", data); err != nil {
		a.lg.Errorw("admin template render failed", "page", page, "error", err)
	}
}
