package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jameshartig/chargeplan/pkg/charger"
	"github.com/jameshartig/chargeplan/pkg/common"
	"github.com/jameshartig/chargeplan/pkg/controller"
	"github.com/jameshartig/chargeplan/pkg/log"
	"github.com/jameshartig/chargeplan/pkg/smartcharging"
	"github.com/jameshartig/chargeplan/pkg/storage"
)

type contextKey string

const (
	stationIDContextKey contextKey = "stationID"
	emailContextKey     contextKey = "email"
)

const requestIDHeader = "X-Request-ID"

// tokenVerifier validates an OIDC ID token and returns its email claim.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

// Server handles the HTTP API and the control loop of the stations.
// It orchestrates interactions between the chargers, the smart charging
// service and storage.
type Server struct {
	chargers   *charger.Map
	storage    storage.Database
	service    *smartcharging.Service
	controller *controller.Controller
	now        func() time.Time

	listenAddr string
	httpServer *http.Server

	updateSpecificEmail string
	adminEmails         []string
	verifyToken         tokenVerifier
	bypassAuth          bool
	serverName          string
	compositeRateLimit  int
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(c *charger.Map, s storage.Database, svc *smartcharging.Service) *Server {
	srv := &Server{
		chargers:   c,
		storage:    s,
		service:    svc,
		controller: controller.NewController(),
		now:        time.Now,
		serverName: "chargeplan/" + common.Version(),
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	updateSpecificEmail := lflag.String("update-specific-email", "", "email to validate for /api/update")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to change any station")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "issuer of the id tokens to accept")
	oidcAudience := lflag.String("oidc-audience", "", "audience of the id tokens to accept, empty disables authentication")
	compositeRateLimit := lflag.Duration("composite-rate-interval", 100*time.Millisecond, "minimum interval between composite schedule requests per IP")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.updateSpecificEmail = *updateSpecificEmail
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		if *compositeRateLimit <= 0 {
			panic(fmt.Sprintf("composite-rate-interval must be positive, got %s", *compositeRateLimit))
		}
		srv.compositeRateLimit = int(time.Second / *compositeRateLimit)
		if srv.compositeRateLimit < 1 {
			srv.compositeRateLimit = 1
		}

		if *oidcAudience == "" {
			log.Ctx(context.Background()).Warn("no oidc-audience configured, authentication is disabled")
			srv.bypassAuth = true
			return
		}
		provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
		if err != nil {
			log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
			os.Exit(1)
		}
		verifier := provider.Verifier(&oidc.Config{ClientID: *oidcAudience})
		srv.verifyToken = func(ctx context.Context, rawIDToken string) (string, error) {
			idToken, err := verifier.Verify(ctx, rawIDToken)
			if err != nil {
				return "", err
			}
			var claims struct {
				Email string `json:"email"`
			}
			if err := idToken.Claims(&claims); err != nil {
				return "", err
			}
			return claims.Email, nil
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.Handle("GET /api/composite", httprate.LimitByIP(max(s.compositeRateLimit, 1), time.Second)(http.HandlerFunc(s.handleGetComposite)))
	apiMux.HandleFunc("GET /api/plan", s.handleGetPlan)
	apiMux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	apiMux.HandleFunc("POST /api/profiles", s.handleSetProfile)
	apiMux.HandleFunc("POST /api/profiles/clear", s.handleClearProfiles)
	apiMux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	apiMux.HandleFunc("POST /api/transactions/start", s.handleStartTransaction)
	apiMux.HandleFunc("POST /api/transactions/stop", s.handleStopTransaction)
	apiMux.HandleFunc("POST /api/stations", s.handleUpsertStation)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("POST /api/update", s.handleUpdate)
	apiMux.HandleFunc("GET /api/history/actions", s.handleHistoryActions)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.metricsMiddleware(s.authMiddleware(apiMux)))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.requestIDMiddleware(s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux))))
}

func (s *Server) getStationID(r *http.Request) string {
	if stationID, ok := r.Context().Value(stationIDContextKey).(string); ok {
		return stationID
	}
	// we want to have a stack trace when this happens
	panic("no stationID in context")
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with an id, reusing the caller's if
// it sent one, and adds it to the request's logger.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := log.With(r.Context(), log.Ctx(r.Context()).With(slog.String("requestID", id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isAdmin returns true if the email is in the adminEmails list.
func (s *Server) isAdmin(email string) bool {
	for _, adminEmail := range s.adminEmails {
		if email == adminEmail {
			return true
		}
	}
	return false
}
