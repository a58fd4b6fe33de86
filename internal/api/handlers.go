package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/starcards/internal/catalog"
	"github.com/vytor/starcards/internal/errors"
	"github.com/vytor/starcards/internal/ledger"
	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
	"github.com/vytor/starcards/internal/services"
)

// TeacherPINHeader carries the teacher PIN on protected routes.
const TeacherPINHeader = "X-Teacher-PIN"

const maxImportBytes = 32 << 20

// Pinger reports whether storage is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Catalog    *catalog.Catalog
	Ledger     *ledger.Ledger
	Study      services.StudyService
	Dashboards services.DashboardService
	Progress   services.ProgressService
	DB         Pinger
	AssetsDir  string
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	cards := s.Catalog.Sorted()
	if raw := r.URL.Query().Get("unit"); raw != "" {
		unit, err := strconv.Atoi(raw)
		if err != nil || unit < 1 {
			handleError(w, r, errors.NewBadRequestError("unit must be a positive integer"))
			return
		}
		filtered := cards[:0]
		for _, c := range cards {
			if c.Unit == unit {
				filtered = append(filtered, c)
			}
		}
		cards = filtered
	}
	if cards == nil {
		cards = []models.Card{}
	}
	writeJSON(w, r, http.StatusOK, cards)
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	units := s.Catalog.Units()
	if units == nil {
		units = []int{}
	}
	writeJSON(w, r, http.StatusOK, units)
}

func (s *Server) handleRecentNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Ledger.RecentNames())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req services.StartRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	view, err := s.Study.Start(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, view)
}

func (s *Server) handleCurrentCard(w http.ResponseWriter, r *http.Request) {
	view, err := s.Study.Current(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.Advance(r.Context(), chi.URLParam(r, "id"), body.Outcome)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(r, &body); err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.Study.Quiz(r.Context(), chi.URLParam(r, "id"), body.Answer)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Study.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the parameter escaped.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			handleError(w, r, errors.NewBadRequestError("invalid student name"))
			return
		}
		name = unescaped
	}
	dash, err := s.Dashboards.Student(r.Context(), name, r.URL.Query().Get("code"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dash)
}

func (s *Server) handleTeacherDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.Dashboards.Teacher(r.Context(), r.Header.Get(TeacherPINHeader))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dash)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	body, err := s.Progress.Export(r.Context(), r.Header.Get(TeacherPINHeader))
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="star-progress.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write export: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		log.Warn("failed to read import body: %v", err)
		handleError(w, r, errors.NewBadRequestError("could not read upload"))
		return
	}
	n, err := s.Progress.Import(r.Context(), r.Header.Get(TeacherPINHeader), data)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"students": n})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Progress.Reset(r.Context(), r.Header.Get(TeacherPINHeader)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
