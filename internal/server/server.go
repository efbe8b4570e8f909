package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"neural-how/internal/config"
	"neural-how/internal/dispatch"
	"neural-how/internal/metrics"
	"neural-how/internal/models"
	"neural-how/internal/token"
	"neural-how/internal/tokenmap"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 90 * time.Second
	idleTimeout         = 120 * time.Second

	bearerPrefix = "Bearer "
)

// Resolver maps a delegation token to the provider token it stands for.
type Resolver interface {
	Resolve(token string) (string, error)
}

type Server struct {
	cfg       config.Config
	tokens    Resolver
	completer dispatch.Completer
	log       *zap.Logger
	metrics   *metrics.Registry
	app       *echo.Echo
}

// New constructs an HTTP server wired with routing and middleware. reg may be
// nil, in which case no metrics are recorded or exposed.
func New(cfg config.Config, tokens Resolver, completer dispatch.Completer, log *zap.Logger, reg *metrics.Registry) (*Server, error) {
	if tokens == nil {
		return nil, errors.New("token resolver must not be nil")
	}
	if completer == nil {
		return nil, errors.New("completer must not be nil")
	}
	if log == nil {
		return nil, errors.New("logger must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = plainTextErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if reg != nil {
		e.Use(metrics.Middleware(reg))
	}
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Int64("latency_ms", v.Latency.Milliseconds()),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	srv := &Server{
		cfg:       cfg,
		tokens:    tokens,
		completer: completer,
		log:       log,
		metrics:   reg,
		app:       e,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg)
	s.log.Info("starting server", zap.String("addr", s.cfg.Address()))

	httpServer := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.log.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/how", s.handleHow)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.app.GET(s.cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})))
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleHow resolves the presented delegation token and answers with the
// provider token it maps to. Tokens that resolve to something undecodable are
// rejected; they are never delegated again.
func (s *Server) handleHow(c echo.Context) error {
	delegationToken, err := bearerToken(c.Request())
	if err != nil {
		s.recordAuthFailure()
		return err
	}

	providerToken, err := s.tokens.Resolve(delegationToken)
	if err != nil {
		s.recordAuthFailure()
		return requestError{Status: http.StatusUnauthorized, Message: "Invalid token"}
	}

	if !c.QueryParams().Has("question") {
		return requestError{Status: http.StatusBadRequest, Message: "query parameter 'question' is required"}
	}

	s.log.Info("using token", zap.String("provider", token.Tag(providerToken)))

	res := token.Decode(models.NewQuestion(c.QueryParam("question"), providerToken))
	comp, ok := res.Completion()
	if !ok {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "Somehow, I can't understand the token I've found...",
			Err:     token.ErrUndecodable,
		}
	}

	answer, err := s.completer.Complete(c.Request().Context(), comp)
	if err != nil {
		return completionError(err)
	}

	return c.String(http.StatusOK, answer)
}

func (s *Server) recordAuthFailure() {
	if s.metrics != nil {
		s.metrics.RecordAuthFailure()
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", requestError{Status: http.StatusUnauthorized, Message: "No Authorization header"}
	}
	tok, found := strings.CutPrefix(header, bearerPrefix)
	if !found || tok == "" {
		return "", requestError{Status: http.StatusUnauthorized, Message: "Invalid Authorization header"}
	}
	return tok, nil
}

type requestError struct {
	Status  int
	Message string
	Err     error
}

func (e requestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e requestError) Unwrap() error {
	return e.Err
}

// StatusCode lets the metrics middleware label failed requests.
func (e requestError) StatusCode() int {
	return e.Status
}

func plainTextErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.String(reqErr.Status, reqErr.Message)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.String(he.Code, fmt.Sprint(he.Message))
		return
	}

	_ = c.String(http.StatusInternalServerError, "internal server error")
}

// completionError maps any failed provider call, parse or transport, to 400
// carrying the failure text.
func completionError(err error) error {
	return requestError{
		Status:  http.StatusBadRequest,
		Message: err.Error(),
		Err:     err,
	}
}

func printStartupBanner(cfg config.Config) {
	fmt.Println()
	fmt.Println("how-server ready")
	fmt.Printf("Listening on http://%s\n", cfg.Address())
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /how?question=<text>")
	if cfg.Metrics.Enabled {
		fmt.Printf("  GET  %s\n", cfg.Metrics.Path)
	}
	fmt.Printf("Example:\n  curl -X POST 'http://%s/how?question=list%%20files' -H 'Authorization: Bearer <delegation-token>'\n\n", cfg.Address())
}

var _ Resolver = (*tokenmap.Map)(nil)
