// Package api serves the catalog over REST with fiber.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/schemajeli/schemajeli/internal/apperr"
	"github.com/schemajeli/schemajeli/internal/auth"
	"github.com/schemajeli/schemajeli/internal/catalog"
	"github.com/schemajeli/schemajeli/internal/config"
	"github.com/schemajeli/schemajeli/internal/logger"
)

type Server struct {
	app     *fiber.App
	cfg     *config.Config
	catalog *catalog.Service
	auth    *auth.Authenticator
	logger  *logger.Logger
}

func NewServer(cfg *config.Config, svc *catalog.Service, authn *auth.Authenticator, log *logger.Logger) *Server {
	s := &Server{cfg: cfg, catalog: svc, auth: authn, logger: log}

	s.app = fiber.New(fiber.Config{
		AppName:               "SchemaJeli",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	s.app.Use(s.requestLogger)
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	s.routes()
	return s
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Address() string {
	return net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
}

func (s *Server) Start() error {
	s.logger.Infof("SchemaJeli API listening on %s", s.Address())
	if err := s.app.Listen(s.Address()); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders every failure as the error envelope. Details carry
// the underlying cause outside production only.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(apperr.KindOf(err))
	message := apperr.MessageOf(err)

	var ae *apperr.Error
	var fe *fiber.Error
	if !errors.As(err, &ae) && errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}

	body := envelope{Status: statusError, Message: message}
	if !s.cfg.IsProduction() && err.Error() != message {
		body.Details = err.Error()
	}
	return c.Status(status).JSON(body)
}

// requestLogger logs one line per request, at WARN for client errors and
// ERROR for server errors.
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	if chainErr := c.Next(); chainErr != nil {
		if err := s.handleError(c, chainErr); err != nil {
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusInternalServerError {
			s.logger.Errorf("%s %s failed: %v", c.Method(), c.Path(), chainErr)
		}
	}

	status := c.Response().StatusCode()
	elapsed := time.Since(start).Round(time.Microsecond)
	switch {
	case status >= fiber.StatusInternalServerError:
		s.logger.Errorf("%s %s -> %d (%s)", c.Method(), c.OriginalURL(), status, elapsed)
	case status >= fiber.StatusBadRequest:
		s.logger.Warnf("%s %s -> %d (%s)", c.Method(), c.OriginalURL(), status, elapsed)
	default:
		s.logger.Debugf("%s %s -> %d (%s)", c.Method(), c.OriginalURL(), status, elapsed)
	}
	return nil
}
