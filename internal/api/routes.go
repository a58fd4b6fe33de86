package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", s.handleCards)
		r.Get("/units", s.handleUnits)
		r.Get("/students/recent", s.handleRecentNames)
		r.Get("/students/{name}/dashboard", s.handleStudentDashboard)

		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions/{id}/card", s.handleCurrentCard)
		r.Post("/sessions/{id}/advance", s.handleAdvance)
		r.Post("/sessions/{id}/quiz", s.handleQuiz)
		r.Delete("/sessions/{id}", s.handleEndSession)

		r.Get("/teacher/dashboard", s.handleTeacherDashboard)
		r.Get("/progress/export", s.handleExport)
		r.Post("/progress/import", s.handleImport)
		r.Post("/progress/reset", s.handleReset)
	})

	if s.AssetsDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.AssetsDir))))
	}
	return r
}
