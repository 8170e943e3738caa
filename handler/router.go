package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// StatusCheck reports whether the backing storage is reachable.
type StatusCheck func(ctx context.Context) error

// NewRouter mounts every route of the API.
func NewRouter(
	serverName string,
	auth *Authenticator,
	submissions *SubmissionHandler,
	roles *RoleHandler,
	check StatusCheck,
	log *otelzap.SugaredLogger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(otelchi.Middleware(serverName, otelchi.WithChiRoutes(r)))

	r.Get("/readiness", func(rw http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			log.Ctx(r.Context()).Errorw("Readiness", "error", err.Error())
			respondErr(r.Context(), rw, http.StatusServiceUnavailable, err)
			return
		}
		respond(r.Context(), rw, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/slots", submissions.Slots)
		r.Get("/offer", submissions.Offer)

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", submissions.Create)
			r.Get("/", submissions.List)
			r.Get("/{id}", submissions.GetByID)
			r.Post("/{id}/paid", submissions.MarkPaid)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Get("/me", roles.Me)
			r.Put("/{identity}", roles.Assign)
		})
	})

	return r
}
