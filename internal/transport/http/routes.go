package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// request logger after RequestID so req_id is available
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", h.SubmitJob)
		r.Get("/", h.ListJobs)
		r.Post("/{id}/start", h.StartJob)
		r.Get("/{id}/status", h.GetStatus)
		r.Post("/{id}/cancel", h.CancelJob)
		r.Get("/{id}/result", h.GetResult)
		r.Get("/{id}/download/{kind}", h.DownloadArtifact)
		r.Get("/{id}/invocations", h.ListInvocations)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
