// Package http is the presentation layer: server-rendered list, detail
// and form screens reading from the store manager and share status
// resolver, and issuing create/update/delete calls back into it.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"munnies/internal/currency"
	"munnies/internal/events"
	"munnies/internal/persistence"
	appweb "munnies/web"
)

type Server struct {
	http.Server
	templates   *template.Template
	manager     *persistence.Manager
	currency    *currency.Manager
	bus         *events.Bus
	rateLimiter *rateLimiter

	stopWatch    chan struct{}
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and templates, returning a ready-to-run
// server. The templates are embedded, so a parse failure is a build defect
// and fails construction rather than surfacing per request.
func NewServer(addr string, manager *persistence.Manager, cur *currency.Manager, bus *events.Bus) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		manager:     manager,
		currency:    cur,
		bus:         bus,
		rateLimiter: newRateLimiter(),
		stopWatch:   make(chan struct{}),
	}

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(template.FuncMap{
		"display": cur.Format,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("POST /kids", s.withSecurityHeaders(s.handleCreateKid))
	mux.HandleFunc("GET /kids/{id}", s.withSecurityHeaders(s.handleKidDetail))
	mux.HandleFunc("POST /kids/{id}/edit", s.withSecurityHeaders(s.handleEditKid))
	mux.HandleFunc("POST /kids/{id}/delete", s.withSecurityHeaders(s.handleDeleteKid))

	mux.HandleFunc("POST /kids/{id}/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("POST /kids/{id}/transactions/{txid}/delete", s.withSecurityHeaders(s.handleDeleteTransaction))

	mux.HandleFunc("POST /kids/{id}/share", s.withSecurityHeaders(s.handleShareKid))
	mux.HandleFunc("POST /kids/{id}/stop-sharing", s.withSecurityHeaders(s.handleStopSharing))
	mux.HandleFunc("POST /kids/{id}/leave-share", s.withSecurityHeaders(s.handleLeaveShare))
	mux.HandleFunc("POST /shares/accept", s.withSecurityHeaders(s.handleAcceptShare))

	mux.HandleFunc("GET /settings", s.withSecurityHeaders(s.handleSettings))
	mux.HandleFunc("POST /settings/currency", s.withSecurityHeaders(s.handleSetCurrency))
	mux.HandleFunc("POST /settings/onboarding", s.withSecurityHeaders(s.handleCompleteOnboarding))

	// Keep the displayed collections in step with data-changed signals.
	go s.watchSignals()

	return s, nil
}

// watchSignals rebuilds the manager's cached collections whenever a save
// commits locally, a remote change is processed or a share is accepted.
func (s *Server) watchSignals() {
	ch, cancel := s.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-s.stopWatch:
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			switch sig.Kind {
			case events.KindLocalSave, events.KindRemoteChange, events.KindShareAccepted:
				s.manager.Refresh(context.Background())
			case events.KindShareAcceptFailed:
				slog.Warn("Share acceptance failed", "message", sig.Message)
			}
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopWatch != nil {
			close(s.stopWatch)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate-limit mutating requests only
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once both storage partitions finished loading.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.LoadError(); err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if !s.manager.StoresLoaded() {
		http.Error(w, "loading", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
