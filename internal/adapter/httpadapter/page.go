package httpadapter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"metric": formatMetric,
	"day":    func(t time.Time) string { return t.Format(domain.DateLayout) },
}).ParseFS(templateFS, "templates/dashboard.html"))

type pageData struct {
	View    *presenter.View
	Options []regionOption
	CSVURL  string
}

type regionOption struct {
	Name     string
	Selected bool
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := s.render(w, r)
	if view == nil {
		return
	}

	selected := make(map[string]bool)
	for _, reg := range view.Regions {
		selected[strings.ToLower(reg.Name)] = true
	}
	data := pageData{View: view, CSVURL: csvURL(r.URL.Query(), view)}
	for _, reg := range s.regions.Regions() {
		data.Options = append(data.Options, regionOption{Name: reg.Name, Selected: selected[strings.ToLower(reg.Name)]})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render page failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func formatMetric(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}

// csvURL links the download to the table on screen. The resolved range,
// resolution and policy are pinned so a default look-back cannot move
// between the page render and the download.
func csvURL(q url.Values, view *presenter.View) string {
	q.Set("start", view.Range.Start.Format(domain.DateLayout))
	q.Set("end", view.Range.End.Format(domain.DateLayout))
	q.Set("resolution", string(view.Resolution))
	q.Set("policy", string(view.Policy))
	u := url.URL{Path: "/api/dashboard.csv", RawQuery: q.Encode()}
	return u.String()
}
