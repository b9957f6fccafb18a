// Package target is a local stand-in for the service under test. It serves the
// same document from two routes: one keeps its client in the request context,
// the other in a process-wide singleton.
package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultDelay    = 1000 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

type ServerConfig struct {
	Port int
	// RateLimit caps demo routes at this many requests per second, answering
	// 429 above it. 0 disables the limit.
	RateLimit    int
	DefaultDelay time.Duration
}

// Result is the document both route families return.
type Result struct {
	Route          string `json:"route"`
	Pattern        string `json:"pattern"`
	Call1RequestID string `json:"call1RequestId"`
	Call2RequestID string `json:"call2RequestId"`
	Match          bool   `json:"match"`
	DelayMs        int64  `json:"delayMs"`
	Timestamp      int64  `json:"timestamp"`
}

type Server struct {
	cfg       ServerConfig
	logger    *zap.Logger
	singleton *Singleton
	limiter   *rate.Limiter

	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	mismatches  *prometheus.CounterVec
	rateLimited prometheus.Counter
	inflight    prometheus.Gauge

	handler http.Handler
}

func New(cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = DefaultDelay
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		singleton: &Singleton{},
		registry:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leakcheck",
			Subsystem: "target",
			Name:      "requests_total",
			Help:      "Requests served per route.",
		}, []string{"route"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leakcheck",
			Subsystem: "target",
			Name:      "mismatches_total",
			Help:      "Requests whose second client read returned a different client.",
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leakcheck",
			Subsystem: "target",
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leakcheck",
			Subsystem: "target",
			Name:      "inflight_requests",
			Help:      "Demo requests currently being served.",
		}),
	}
	s.registry.MustRegister(s.requests, s.mismatches, s.rateLimited, s.inflight)

	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /safe", s.limit(s.handleSafe(renderPage)))
	mux.HandleFunc("GET /unsafe", s.limit(s.handleUnsafe(renderPage)))
	mux.HandleFunc("GET /api/safe", s.limit(s.handleSafe(renderJSON)))
	mux.HandleFunc("GET /api/unsafe", s.limit(s.handleUnsafe(renderJSON)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("leakcheck target\nroutes: /safe /unsafe /api/safe /api/unsafe /metrics /health\n"))
	})

	s.handler = mux
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("target listening",
			zap.String("addr", server.Addr),
			zap.Int("rate_limit", s.cfg.RateLimit),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down target: %w", err)
	}
	return <-errCh
}

type renderFunc func(w http.ResponseWriter, res Result)

func (s *Server) handleSafe(render renderFunc) http.HandlerFunc {
	return scoped(func(w http.ResponseWriter, r *http.Request) {
		delay := parseDelay(r, s.cfg.DefaultDelay)
		reqID := shortID(uuid.New().String())

		client1, ok := ClientFrom(r.Context())
		if !ok {
			http.Error(w, "request client missing from context", http.StatusInternalServerError)
			return
		}
		s.logger.Debug("write", zap.String("route", "safe"), zap.String("req", reqID),
			zap.String("scope", shortID(client1.RequestID)), zap.Duration("delay", delay))

		if !sleepCtx(r.Context(), delay) {
			return
		}

		client2, _ := ClientFrom(r.Context())
		res := newResult("safe", "request context", client1, client2, delay)
		s.observe(res, reqID)
		render(w, res)
	})
}

func (s *Server) handleUnsafe(render renderFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		delay := parseDelay(r, s.cfg.DefaultDelay)
		reqID := shortID(uuid.New().String())

		client1 := s.singleton.Get()
		s.logger.Debug("write", zap.String("route", "unsafe"), zap.String("req", reqID),
			zap.String("singleton", shortID(client1.RequestID)), zap.Duration("delay", delay))

		if !sleepCtx(r.Context(), delay) {
			return
		}

		client2 := s.singleton.Get()
		res := newResult("unsafe", "module singleton", client1, client2, delay)
		s.observe(res, reqID)

		// The leak window is the delay above; clear only once the result is built.
		s.singleton.Reset()
		render(w, res)
	}
}

func (s *Server) observe(res Result, reqID string) {
	s.requests.WithLabelValues(res.Route).Inc()
	if res.Match {
		s.logger.Debug("read", zap.String("route", res.Route), zap.String("req", reqID),
			zap.String("scope", shortID(res.Call2RequestID)), zap.Bool("match", true))
		return
	}
	s.mismatches.WithLabelValues(res.Route).Inc()
	s.logger.Warn("client leaked between requests",
		zap.String("route", res.Route),
		zap.String("req", reqID),
		zap.String("wrote", shortID(res.Call1RequestID)),
		zap.String("got", shortID(res.Call2RequestID)),
	)
}

// limit wraps demo routes with the optional token bucket and inflight gauge.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.rateLimited.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		s.inflight.Inc()
		defer s.inflight.Dec()
		next(w, r)
	}
}

func newResult(route, pattern string, c1, c2 *RequestClient, delay time.Duration) Result {
	return Result{
		Route:          route,
		Pattern:        pattern,
		Call1RequestID: c1.RequestID,
		Call2RequestID: c2.RequestID,
		Match:          c1.RequestID == c2.RequestID,
		DelayMs:        delay.Milliseconds(),
		Timestamp:      time.Now().UnixMilli(),
	}
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s route</title></head>
<body>
<h1>%s route</h1>
<pre>%s</pre>
</body>
</html>
`

// renderPage embeds the result in HTML with entity-encoded quotes, the way
// templated server pages emit it.
func renderPage(w http.ResponseWriter, res Result) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, pageTemplate, res.Route, res.Route, htmlEscaper.Replace(string(data)))
}

func renderJSON(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(res)
}

func parseDelay(r *http.Request, def time.Duration) time.Duration {
	ms, err := strconv.Atoi(r.URL.Query().Get("delay"))
	if err != nil || ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
