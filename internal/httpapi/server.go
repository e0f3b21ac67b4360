package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/TMG-AI/tara-dashboard/internal/dedupe"
	"github.com/TMG-AI/tara-dashboard/internal/globaltime"
	"github.com/TMG-AI/tara-dashboard/internal/ingest"
	"github.com/TMG-AI/tara-dashboard/internal/ledger"
	"github.com/TMG-AI/tara-dashboard/internal/metrics"
	"github.com/TMG-AI/tara-dashboard/internal/store"
)

const (
	defaultMentionLimit = 100
	maxMentionLimit     = 1000
	maxWebhookBody      = "5M"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AdminKey guards dedupe and removal. Empty disables those routes.
	AdminKey string
	// WebhookSecret, when set, must be presented as ?key= on webhook posts.
	WebhookSecret string
	// DedupeLimit is the default snapshot size for dedupe requests.
	DedupeLimit int
	Location    *time.Location
}

// Dependencies are the components the handlers call into.
type Dependencies struct {
	Backend  store.Backend
	Timeline store.ScoredSet
	Ledger   *ledger.Ledger
	Ingest   *ingest.Service
	Resolver *dedupe.Resolver
	Metrics  *metrics.Collector
}

type Server struct {
	deps   Dependencies
	logger zerolog.Logger
	opts   Options
	now    func() time.Time
}

func NewServer(deps Dependencies, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	dedupeLimit := opts.DedupeLimit
	if dedupeLimit <= 0 {
		dedupeLimit = dedupe.DefaultLimit
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Server{
		deps:   deps,
		logger: logger,
		now:    globaltime.Now,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			AdminKey:        strings.TrimSpace(opts.AdminKey),
			WebhookSecret:   strings.TrimSpace(opts.WebhookSecret),
			DedupeLimit:     dedupeLimit,
			Location:        loc,
		},
	}
}

func (s *Server) WithClock(now func() time.Time) *Server {
	if s == nil || now == nil {
		return s
	}
	s.now = now
	return s
}

// Handler builds the routed echo instance.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.recordMetrics)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", redactKey(v.URI)).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", redactKey(v.URI)).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/mentions", s.handleMentions)
	api.POST("/webhooks/:kind", s.handleWebhook, middleware.BodyLimit(maxWebhookBody), s.requireWebhookSecret)

	api.POST("/dedupe", s.handleDedupe, s.requireAdminKey)
	api.DELETE("/mentions/:id", s.handleRemoveMention, s.requireAdminKey)

	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.deps.Timeline == nil || s.deps.Ingest == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("tara web server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("tara web server stopped")
	return nil
}

func (s *Server) recordMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil && !c.Response().Committed {
			status = http.StatusInternalServerError
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.RecordHTTP(c.Request().Method, route, status, time.Since(start))
		return err
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

// redactKey hides the value of a key query parameter in logged URIs.
func redactKey(uri string) string {
	idx := strings.Index(uri, "key=")
	if idx < 0 {
		return uri
	}
	end := strings.IndexByte(uri[idx:], '&')
	if end < 0 {
		return uri[:idx] + "key=REDACTED"
	}
	return uri[:idx] + "key=REDACTED" + uri[idx+end:]
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
