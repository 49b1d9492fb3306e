// internal/api/v2/api.go
package api

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/africaresearchbase/arb/internal/ai"
	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/events"
	"github.com/africaresearchbase/arb/internal/logging"
	"github.com/africaresearchbase/arb/internal/observability"
	"github.com/africaresearchbase/arb/internal/security"
)

// ObjectStore is the file storage surface the upload handler needs.
type ObjectStore interface {
	Upload(ctx context.Context, reader io.Reader, filename, contentType string, size int64) (key, url string, err error)
	HealthCheck(ctx context.Context) error
}

// QualityAnalyzer produces an AI quality assessment for dataset metadata.
type QualityAnalyzer interface {
	AnalyzeDataset(ctx context.Context, meta ai.DatasetMetadata) (ai.Analysis, error)
}

// ChainRegistrar writes dataset metadata on chain.
type ChainRegistrar interface {
	RegisterDataset(ctx context.Context, ds *datastore.Dataset) (string, error)
}

// EventPublisher emits dataset lifecycle events.
type EventPublisher interface {
	PublishDatasetUploaded(ctx context.Context, event events.DatasetEvent) error
	PublishDatasetVerified(ctx context.Context, event events.DatasetEvent) error
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	objectStore ObjectStore
	analyzer    QualityAnalyzer
	chain       ChainRegistrar
	events      EventPublisher
	auth        *security.Service

	logger         *log.Logger
	apiLogger      *slog.Logger   // Structured logger for API operations
	apiLevelVar    *slog.LevelVar // Dynamic level control
	apiLoggerClose func() error   // Function to close the log file

	datasetCache *cache.Cache // Cache for dataset list queries
	limiters     *cache.Cache // Per-client rate limiters, expire with inactivity
	metrics      *observability.Metrics
	startTime    *time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithObjectStore sets the file storage backend.
func WithObjectStore(store ObjectStore) Option {
	return func(c *Controller) { c.objectStore = store }
}

// WithAnalyzer sets the AI quality analyzer.
func WithAnalyzer(analyzer QualityAnalyzer) Option {
	return func(c *Controller) { c.analyzer = analyzer }
}

// WithChainRegistrar sets the on-chain registration client.
func WithChainRegistrar(registrar ChainRegistrar) Option {
	return func(c *Controller) { c.chain = registrar }
}

// WithEventPublisher sets the lifecycle event publisher.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(c *Controller) { c.events = publisher }
}

// New creates a new API controller, returning an error if initialization fails.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics, opts ...Option) (*Controller, error) {
	return NewWithOptions(e, ds, settings, logger, metrics, true, opts...)
}

// NewWithOptions creates a new API controller with optional route
// initialization. Set initializeRoutes to false in tests that register
// routes selectively.
func NewWithOptions(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics, initializeRoutes bool, opts ...Option) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	now := time.Now()
	c := &Controller{
		Echo:         e,
		DS:           ds,
		Settings:     settings,
		logger:       logger,
		auth:         security.NewService(&settings.Security),
		datasetCache: cache.New(1*time.Minute, 5*time.Minute),
		limiters:     cache.New(10*time.Minute, 15*time.Minute),
		metrics:      metrics,
		startTime:    &now,
	}

	// Initialize structured logger for API requests
	apiLogPath := "logs/web.log"
	c.apiLevelVar = new(slog.LevelVar)
	if settings.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	} else {
		c.apiLevelVar.Set(slog.LevelInfo)
	}

	apiLogger, closeFunc, err := logging.NewFileLogger(apiLogPath, "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
		c.apiLogger = logging.ForService("api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
		logger.Printf("API structured logging initialized to %s", apiLogPath)
	}

	for _, opt := range opts {
		opt(c)
	}

	// Create v2 API group
	c.Group = e.Group("/api/v2")

	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	// Uploaded files are capped at 100 MiB; leave headroom for the
	// multipart envelope.
	c.Group.Use(middleware.BodyLimit("128M"))
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// LoggingMiddleware creates a middleware function that logs API requests
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts and latency per route.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			route := ctx.Path()
			method := ctx.Request().Method
			status := fmt.Sprintf("%d", ctx.Response().Status)

			c.metrics.HTTP.RequestsTotal.WithLabelValues(method, route, status).Inc()
			c.metrics.HTTP.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"auth routes", c.initAuthRoutes},
		{"dataset routes", c.initDatasetRoutes},
		{"review routes", c.initReviewRoutes},
		{"points routes", c.initPointsRoutes},
		{"chain routes", c.initChainRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)
		initializer.fn()
	}
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":         "healthy",
		"version":        c.Settings.Version,
		"build_date":     c.Settings.BuildDate,
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(*c.startTime).Seconds()),
	}

	if c.objectStore != nil {
		checkCtx, cancel := context.WithTimeout(ctx.Request().Context(), 3*time.Second)
		defer cancel()
		if err := c.objectStore.HealthCheck(checkCtx); err != nil {
			response["status"] = "degraded"
			response["object_store"] = "unreachable"
		} else {
			response["object_store"] = "ok"
		}
	}

	return ctx.JSON(200, response)
}

// Shutdown releases controller resources. Safe to call more than once.
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Warning: failed to close API log file: %v", err)
		}
		c.apiLoggerClose = nil
	}
}

// ErrorResponse represents the standard JSON error body.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a unique identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	ip := ctx.RealIP()

	c.logger.Printf("API Error [%s] from %s: %s: %v",
		errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		var errorStr string
		if err != nil {
			errorStr = err.Error()
		} else {
			errorStr = message
		}

		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)

		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}
