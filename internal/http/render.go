package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"contratandoplanos/internal/auth"
	"contratandoplanos/internal/core"
	applog "contratandoplanos/internal/log"
)

const layoutFile = "templates/layout.html"

var saoPaulo = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

type appMetrics struct {
	uptime             time.Time
	leadsCreated       atomic.Int64
	proposalsSubmitted atomic.Int64
	catalogLoads       atomic.Int64
	renderErrors       atomic.Int64
}

// pageData is what every page template receives.
type pageData struct {
	Title     string
	Section   string
	Path      string
	Principal *auth.Principal
	Flash     string
	Data      any
}

// Flash messages selected by the ?msg= query parameter after a redirect.
var flashMessages = map[string]string{
	"proposta-enviada":   "Proposta enviada para análise.",
	"proposta-excluida":  "Proposta excluída.",
	"status-atualizado":  "Status atualizado.",
	"foto-atualizada":    "Foto atualizada.",
	"produto-salvo":      "Produto salvo.",
	"tabela-salva":       "Tabela salva.",
	"tabela-excluida":    "Tabela excluída.",
	"corretor-excluido":  "Corretor excluído.",
	"documento-excluido": "Documento excluído.",
	"comissao-paga":      "Comissão marcada como paga.",
}

func (s *Server) parseTemplates(fsys fs.FS) error {
	partials, err := template.New("partials").Funcs(s.funcMap()).ParseFS(fsys, "templates/partials/*.html")
	if err != nil {
		return fmt.Errorf("parse partials: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		t, err := template.New(path.Base(file)).Funcs(s.funcMap()).ParseFS(fsys, layoutFile, "templates/partials/*.html", file)
		if err != nil {
			return fmt.Errorf("parse %s: %w", file, err)
		}
		pages[path.Base(file)] = t
	}
	s.pages = pages
	s.partials = partials
	return nil
}

func (s *Server) funcMap() template.FuncMap {
	return template.FuncMap{
		"brl":      formatMoney,
		"phone":    core.FormatPhone,
		"cpf":      core.FormatCPF,
		"date":     formatDate,
		"datetime": formatDateTime,
		"isoDate":  isoDate,
		"pct": func(bps int) string {
			return core.Product{CommissionBps: bps}.CommissionLabel()
		},
		"markdown": func(src string) template.HTML {
			return s.markdown.Render(src)
		},
		"excerpt": func(src string, n int) string {
			return truncate(s.markdown.PlainText(src), n)
		},
		"barHeight": func(n, max int) int {
			if max <= 0 || n <= 0 {
				return 0
			}
			h := n * 100 / max
			if h < 4 {
				h = 4
			}
			return h
		},
		"sub":      func(a, b int) int { return a - b },
		"initials": initials,
		"today": func() string {
			return isoDate(s.now())
		},
		"kinds":    core.DocumentKinds,
		"docField": documentField,
	}
}

func formatMoney(v any) string {
	switch m := v.(type) {
	case core.Money:
		return core.FormatBRL(m.Cents)
	case int64:
		return core.FormatBRL(m)
	case int:
		return core.FormatBRL(int64(m))
	}
	return ""
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.In(saoPaulo).Format("02/01/2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatDate(*t)
	}
	return ""
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(saoPaulo).Format("02/01/2006 15:04")
}

func isoDate(t time.Time) string {
	return t.In(saoPaulo).Format(dateLayout)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func initials(name string) string {
	var out []rune
	for _, f := range strings.Fields(name) {
		out = append(out, []rune(strings.ToUpper(f))[0])
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// render executes a page inside the layout. The output is buffered so a
// template failure still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := s.pages[page]
	if !ok {
		s.appMetrics.renderErrors.Add(1)
		s.logger.ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}

	pd := pageData{
		Title:   title,
		Section: section(r.URL.Path),
		Path:    r.URL.Path,
		Flash:   flashMessages[r.URL.Query().Get("msg")],
		Data:    data,
	}
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		pd.Principal = &p
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pd); err != nil {
		s.appMetrics.renderErrors.Add(1)
		applog.LogError(r.Context(), "Template execution failed", err, applog.ComponentTemplate, applog.OpRender, applog.NewFields().With("template", page))
		http.Error(w, "Erro interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// partialHTML executes an htmx fragment.
func (s *Server) partialHTML(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.appMetrics.renderErrors.Add(1)
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// renderPartial writes a fragment with status and optional htmx triggers.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.partialHTML(name, data)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Partial render failed", applog.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "Erro ao montar a página").Write(w)
		return
	}
	b.HTML(body).Write(w)
}

type errorPage struct {
	Status   int
	Message  string
	RetryURL string
}

// renderError shows the error page, or an inline alert for htmx requests.
// 5xx pages offer a retry link that reloads the same URL.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isHTMX(r) {
		ErrorResponse(status, message).Write(w)
		return
	}
	data := errorPage{Status: status, Message: message}
	if status >= 500 && r.Method == http.MethodGet {
		data.RetryURL = r.URL.RequestURI()
	}
	s.render(w, r, status, "error.html", message, data)
}

// serverError logs err and renders a generic 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		applog.FieldOperation, operation,
		applog.FieldError, err)
	s.renderError(w, r, http.StatusInternalServerError, "Não foi possível carregar esta página.")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Página não encontrada")
}

func section(p string) string {
	switch {
	case strings.HasPrefix(p, "/admin/"):
		return "admin"
	case strings.HasPrefix(p, "/corretor/"):
		return "corretor"
	}
	return "public"
}
