package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Pjt727/autosign/data/credentials"
	logginghelpers "github.com/Pjt727/autosign/data/logging-helpers"
	serversign "github.com/Pjt727/autosign/server/sign"
	"github.com/Pjt727/autosign/signin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Addr         string
	Orchestrator *signin.Orchestrator
	Store        *credentials.FileStore
	Broadcaster  *logginghelpers.Broadcaster
	Logger       *log.Entry
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	r := chi.NewRouter()
	cors := cors.New(cors.Options{
		// the front-end is only meant for pages served from this machine
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum age for preflight requests
	})
	r.Use(cors.Handler)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  opts.Logger,
		NoColor: false,
	}))

	r.Route("/", func(r chi.Router) {
		serversign.PopulateSignRoutes(&r, opts.Orchestrator, opts.Store, opts.Broadcaster, opts.Logger)
	})
	return r
}

// Serve runs until ctx is done and then shuts the server down.
func Serve(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		opts.Logger.WithField("addr", opts.Addr).Info("Running server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		opts.Logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
