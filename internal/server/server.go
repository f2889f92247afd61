// Package server runs the HTTP listener and its shutdown sequence.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// responseSlack is added on top of the longest request a handler may run.
const responseSlack = 30 * time.Second

// CoverRequestsUpTo raises WriteTimeout so a request lasting d can still be
// answered. An analysis waiting on a remote OCR job holds its connection for
// up to the job deadline.
func (c Config) CoverRequestsUpTo(d time.Duration) Config {
	if need := d + responseSlack; c.WriteTimeout < need {
		c.WriteTimeout = need
	}
	return c
}

// Server wraps the HTTP server and database.
type Server struct {
	config Config
	db     *sql.DB
	http   *http.Server
	logger *zap.Logger
}

// NewServer creates a new HTTP server serving handler. db is closed on Shutdown
// and may be nil.
func NewServer(db *sql.DB, handler http.Handler, config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		config: config,
		db:     db,
		http:   httpServer,
		logger: logger.Named("server"),
	}
}

// Addr is the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start serves until Shutdown is called or the listener fails. A clean
// shutdown returns nil.
func (s *Server) Start(_ context.Context) error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.http.Addr),
		zap.Duration("write_timeout", s.config.WriteTimeout),
	)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server and closes the database connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("database close error: %w", err)
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
