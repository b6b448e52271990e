package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/identity"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/maxaizer/job-intake/internal/progress"
	"github.com/maxaizer/job-intake/internal/services"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 15 * time.Second

type runDispatcher interface {
	Dispatch(ctx context.Context, userID string, prompt string) (string, error)
	Await(ctx context.Context, runID string) (services.Outcome, error)
}

type creditLedger interface {
	ChargeRun(ctx context.Context, req services.ChargeRequest) (services.ChargeResult, error)
	GetBalance(ctx context.Context, userID any) (services.Balance, error)
}

type callbackIngestor interface {
	Ingest(ctx context.Context, payload services.CallbackPayload, sharedSecret string) (*models.JobPosting, error)
	Authorized(sharedSecret string) bool
}

type postingRepository interface {
	GetByUser(ctx context.Context, userID string, limit int, offset int) ([]models.JobPosting, error)
	MarkApplied(ctx context.Context, userID string, uuid string) (bool, error)
}

type userRepository interface {
	FindByKey(ctx context.Context, key models.UserKey) (*models.User, error)
}

type Config struct {
	Port           int
	SharedSecret   string
	JWTSecret      string
	IntakeWait     time.Duration
	ProtectCredits bool
}

type Dependencies struct {
	Dispatcher runDispatcher
	Ledger     creditLedger
	Callbacks  callbackIngestor
	Progress   *progress.Store
	Postings   postingRepository
	Users      userRepository
}

type Server struct {
	httpServer *http.Server
	dispatcher runDispatcher
	ledger     creditLedger
	callbacks  callbackIngestor
	progress   *progress.Store
	postings   postingRepository
	users      userRepository
	validate   *validator.Validate
	intakeWait time.Duration
}

func New(cfg Config, deps Dependencies) *Server {
	s := &Server{
		dispatcher: deps.Dispatcher,
		ledger:     deps.Ledger,
		callbacks:  deps.Callbacks,
		progress:   deps.Progress,
		postings:   deps.Postings,
		users:      deps.Users,
		validate:   validator.New(),
		intakeWait: cfg.IntakeWait,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(cfg Config) http.Handler {
	secret := RequireSecret(cfg.SharedSecret)
	session := RequireSession(NewSessionVerifier(cfg.JWTSecret))

	mux := http.NewServeMux()

	mux.Handle("POST /jobs", Chain(http.HandlerFunc(s.handleCreateJobs), session))
	mux.Handle("GET /jobs", Chain(http.HandlerFunc(s.handleListJobs), session))
	mux.Handle("POST /jobs/{uuid}/applied", Chain(http.HandlerFunc(s.handleMarkApplied), session))

	mux.Handle("POST /progress/update", Chain(http.HandlerFunc(s.handleProgressUpdate), secret))
	mux.Handle("POST /progress/error/search", Chain(http.HandlerFunc(s.handleRunErrorWrite), secret))
	mux.Handle("POST /progress/error/job", Chain(http.HandlerFunc(s.handleJobErrorWrite), secret))
	mux.HandleFunc("GET /progress/error/search/{runId}", s.handleRunErrorRead)
	mux.HandleFunc("GET /progress/error/job/{jobId}", s.handleJobErrorRead)
	mux.HandleFunc("GET /progress/{runId}", s.handleProgressRead)

	deduct := http.Handler(http.HandlerFunc(s.handleDeduct))
	if cfg.ProtectCredits {
		deduct = Chain(deduct, secret)
	}
	mux.Handle("POST /credits/deduct", deduct)
	mux.HandleFunc("GET /credits/check", s.handleCheckCredits)

	mux.HandleFunc("POST /callback", s.handleCallback)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return Chain(mux, RequestID, AccessLog, Recover)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) resolveKey(userID string) (models.UserKey, error) {
	return identity.ResolveString(userID)
}
