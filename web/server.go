// ABOUTME: HTTP server exposing the pipeline API, signing portal and onboarding form
// ABOUTME: Routes with chi and tags every request log with its request id
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harperreed/sponsordesk/contract"
	"github.com/harperreed/sponsordesk/logging"
	"github.com/harperreed/sponsordesk/pipeline"
	"github.com/harperreed/sponsordesk/reminders"
	"github.com/harperreed/sponsordesk/signing"
	"go.uber.org/zap"
)

// Portal serves self-hosted agreements to signers.
type Portal interface {
	GetAgreement(ctx context.Context, id string) (*signing.Agreement, error)
	Document(ctx context.Context, id string) ([]byte, error)
}

// Sweeper runs the contract reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*reminders.SweepResult, error)
}

type Services struct {
	Pipeline  *pipeline.Service
	Contracts *contract.Manager
	Sweeper   Sweeper
	Portal    Portal
}

type Options struct {
	// BaseURL is the public address used in onboarding links.
	BaseURL string
	// CronSecret is the bearer token the reminder trigger expects. When
	// empty the trigger answers 500.
	CronSecret string
	// WebhookClientID is the client id the signing provider sends with
	// webhook calls.
	WebhookClientID string
}

type Server struct {
	svc    Services
	opts   Options
	logger *zap.Logger
	router chi.Router
}

func NewServer(svc Services, opts Options, logger *zap.Logger) *Server {
	s := &Server{svc: svc, opts: opts, logger: logging.OrNop(logger)}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/cron/contract-reminders", s.handleReminderCron)
		api.Post("/webhooks/signing", s.handleSigningWebhook)

		api.Get("/conferences/{id}/pipeline", s.handleBoard)
		api.Post("/pipeline", s.handleAddToPipeline)
		api.Post("/pipeline/status", s.handleBulkStatus)
		api.Route("/pipeline/{id}", func(rec chi.Router) {
			rec.Patch("/status", s.handleUpdateStatus)
			rec.Post("/contract", s.handleGenerateContract)
			rec.Post("/signature", s.handleSignature)
			rec.Post("/reminder", s.handleSendReminder)
			rec.Get("/activities", s.handleListActivities)
			rec.Post("/activities", s.handleAddNote)
			rec.Delete("/", s.handleDeleteRecord)
		})
		api.Post("/sponsors", s.handleCreateSponsor)
		api.Get("/sponsors", s.handleFindSponsors)
		api.Delete("/sponsors/{id}", s.handleDeleteSponsor)
	})

	r.Route("/sponsor", func(pub chi.Router) {
		pub.Get("/portal/{token}", s.handlePortal)
		pub.Get("/portal/{token}/document", s.handlePortalDocument)
		pub.Post("/portal/{token}/sign", s.handlePortalSign)
		pub.Get("/onboarding/{token}", s.handleOnboarding)
		pub.Post("/onboarding/{token}", s.handleSubmitOnboarding)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), logger)))

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// Start serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down web server")
		return srv.Shutdown(shutdownCtx)
	}
}
