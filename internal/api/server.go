package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/manish3089/Token-Generator/internal/cache"
	"github.com/manish3089/Token-Generator/internal/messaging"
	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// TokenExchanger is the part of the Sharekhan client the web surface needs
type TokenExchanger interface {
	LoginURL(apiKey string) string
	ExchangeToken(ctx context.Context, apiKey, authCode, secretID string) (*models.TokenResult, error)
}

// Server represents the local HTTP server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	templates  *template.Template

	// Dependencies
	exchanger TokenExchanger
	tokens    cache.TokenStore
	publisher messaging.Publisher
}

// NewServer creates a new server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	exchanger TokenExchanger,
	tokens cache.TokenStore,
	publisher messaging.Publisher,
) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	if tokens == nil {
		tokens = cache.NewMemoryStore()
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		templates: tmpl,
		exchanger: exchanger,
		tokens:    tokens,
		publisher: publisher,
	}

	s.setupRoutes()

	return s, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	// Browser flow
	s.router.HandleFunc("/", s.handleHome).Methods("GET")
	s.router.HandleFunc("/login", s.handleLogin).Methods("GET")
	s.router.HandleFunc("/callback", s.handleCallback).Methods("GET")
	s.router.HandleFunc("/generate_token", s.handleGenerateToken).Methods("POST")

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.Handle("/tokens/{app_id}", loopbackOnly(http.HandlerFunc(s.handleGetToken))).Methods("GET")
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Middleware functions

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": requestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     wrapped.statusCode,
			"duration":   time.Since(start),
			"remote":     r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error":      err,
					"path":       r.URL.Path,
					"request_id": requestID(r.Context()),
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// loopbackOnly rejects requests that did not originate on this machine
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(next)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// JSON API handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, natsEnabled := s.publisher.(*messaging.NATSClient)
	_, redisEnabled := s.tokens.(*cache.RedisClient)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"services": map[string]bool{
			"redis": redisEnabled,
			"nats":  natsEnabled,
		},
		"timestamp": time.Now().Unix(),
	})
}

// handleGetToken reports when a token was last issued for an app. The
// access token itself is never returned.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	record, err := s.tokens.GetToken(r.Context(), appID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read cached token")
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read token cache"})
		return
	}
	if record == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no token issued for app"})
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
