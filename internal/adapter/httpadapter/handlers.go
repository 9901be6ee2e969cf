package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/climate-health-dashboard/internal/domain"
	"github.com/couchcryptid/climate-health-dashboard/internal/pipeline"
	"github.com/couchcryptid/climate-health-dashboard/internal/presenter"
)

// CSVFilename is the attachment name of the CSV export.
const CSVFilename = "east_africa_climate_health.csv"

// ParseRequest reads the view selection from query parameters:
// region (repeatable or comma separated), country, start, end, resolution
// and policy. Missing parameters are left for the dashboard defaults.
func ParseRequest(q url.Values) (pipeline.Request, error) {
	var req pipeline.Request
	for _, v := range q["region"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Regions = append(req.Regions, name)
			}
		}
	}
	req.CountryISO3 = strings.ToUpper(strings.TrimSpace(q.Get("country")))

	start, end := q.Get("start"), q.Get("end")
	switch {
	case start != "" && end != "":
		dr, err := domain.ParseDateRange(start, end)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Range = dr
	case start != "" || end != "":
		return pipeline.Request{}, errors.New("start and end must be given together")
	}

	if v := q.Get("resolution"); v != "" {
		res, err := domain.ParseResolution(v)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Resolution = res
	}
	if v := q.Get("policy"); v != "" {
		p, err := domain.ParseMergePolicy(v)
		if err != nil {
			return pipeline.Request{}, err
		}
		req.Policy = p
	}
	return req, nil
}

// render parses the request and renders the view, writing a 400 response
// and returning nil if the request is invalid.
func (s *Server) render(w http.ResponseWriter, r *http.Request) *presenter.View {
	req, err := ParseRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil
	}
	view, err := s.renderer.Render(r.Context(), req)
	if err != nil {
		s.logger.Warn("render rejected", "error", err, "query", r.URL.RawQuery)
		writeError(w, http.StatusBadRequest, err)
		return nil
	}
	return view
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	if view := s.render(w, r); view != nil {
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	view := s.render(w, r)
	if view == nil {
		return
	}
	var buf bytes.Buffer
	if err := domain.WriteCSV(&buf, view.Rows); err != nil {
		s.logger.Error("write csv failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFilename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client went away
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.Region{"regions": s.regions.Regions()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
