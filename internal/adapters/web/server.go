package web

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/corey/codeguard/internal/app"
)

// Server serves the dashboard and JSON API over HTTP.
type Server struct {
	app      *app.App
	log      *zap.Logger
	fiber    *fiber.App
	listener net.Listener
	port     int
	started  time.Time
	stopOnce sync.Once
}

// NewServer builds the fiber app and registers every route. Nothing
// listens until Start.
func NewServer(a *app.App, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{app: a, log: log, started: time.Now()}
	s.fiber = fiber.New(fiber.Config{
		AppName:               "codeguard",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})
	s.fiber.Use(recover.New())
	s.fiber.Use(s.requestLogger)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.fiber.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.Send(indexHTML)
	})

	api := s.fiber.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/languages", s.handleLanguages)
	api.Get("/rules", s.handleRules)
	api.Get("/rules/:name", s.handleRule)
	api.Get("/queries/:rule/:language", s.handleQuery)
	api.Post("/analyze", s.handleAnalyze)
	api.Get("/runs", s.handleRuns)
	api.Get("/runs/:id", s.handleRun)
	api.Get("/runs/:id/tree", s.handleRunTree)
}

// Handler exposes the fiber app, mostly for tests via Test().
func (s *Server) Handler() *fiber.App {
	return s.fiber
}

// Start listens on addr and serves in the background. Port 0 picks a free
// port; Port reports the one bound.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()

	go func() {
		if err := s.fiber.Listener(ln); err != nil {
			s.log.Warn("http server stopped", zap.Error(err))
		}
	}()
	s.log.Info("http server listening", zap.String("url", s.URL()))
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.fiber.ShutdownWithTimeout(5 * time.Second)
	})
	return err
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the dashboard URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err))
	return err
}
