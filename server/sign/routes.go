package serversign

import (
	"github.com/Pjt727/autosign/data/credentials"
	logginghelpers "github.com/Pjt727/autosign/data/logging-helpers"
	"github.com/Pjt727/autosign/signin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// PopulateSignRoutes mounts the sign-in front-end. store and broadcaster may be
// nil which disables remembered credentials and the log stream.
func PopulateSignRoutes(
	r *chi.Router,
	orchestrator *signin.Orchestrator,
	store *credentials.FileStore,
	broadcaster *logginghelpers.Broadcaster,
	logger *log.Entry,
) {
	h := newSignHandler(orchestrator, store, broadcaster, logger)

	(*r).Get("/", h.home)
	(*r).Get("/watch-logs", h.loggingWebSocket)
	(*r).With(
		middleware.AllowContentType("application/x-www-form-urlencoded", "multipart/form-data"),
	).Post("/login", h.login)

	(*r).Group(func(r chi.Router) {
		r.Use(h.ensureRun)
		r.Get("/courses", h.courses)
		r.Post("/courses/{courseID}/sign", h.sign)
		r.Post("/makeup/{scheduleID}", h.makeup)
		r.Post("/logout", h.logout)
	})
}
