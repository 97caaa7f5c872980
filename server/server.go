// Package server runs a services.Registry behind a TCP listener, one
// goroutine per association.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/caio-sobreiro/dimsenet/dimse"
	dimseerrors "github.com/caio-sobreiro/dimsenet/errors"
	"github.com/caio-sobreiro/dimsenet/pdu"
	"github.com/caio-sobreiro/dimsenet/services"
)

// Option configures a Server instance.
type Option func(*Server)

// WithLogger overrides the logger used by the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithReadTimeout sets how long an association may stay idle, and bounds
// association negotiation.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the write timeout for client connections.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

// WithMaxPDULength sets the largest PDU the server accepts.
func WithMaxPDULength(n uint32) Option {
	return func(s *Server) {
		s.MaxPDULength = n
	}
}

// WithEngine shares a DIMSE engine, typically one carrying a tracer.
func WithEngine(engine *dimse.Engine) Option {
	return func(s *Server) {
		s.Engine = engine
	}
}

// WithAcceptPolicy replaces the registry's presentation context policy.
func WithAcceptPolicy(policy pdu.AcceptPolicy) Option {
	return func(s *Server) {
		s.Policy = policy
	}
}

// Server exposes a reusable DICOM listener that wires the PDU layer, the
// DIMSE engine and a service registry.
type Server struct {
	AETitle      string
	Registry     *services.Registry
	Logger       *slog.Logger
	ReadTimeout  time.Duration // Idle timeout for associations (default: 60s)
	WriteTimeout time.Duration // Write timeout for connections (default: 60s)
	MaxPDULength uint32
	Engine       *dimse.Engine
	// Policy defaults to Registry.AcceptPolicy().
	Policy pdu.AcceptPolicy
}

// New builds a Server with the provided AE title and registry.
func New(aeTitle string, registry *services.Registry, opts ...Option) *Server {
	srv := &Server{
		AETitle:      aeTitle,
		Registry:     registry,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// ListenAndServe listens on the given address and serves until the context is done or an error occurs.
func ListenAndServe(ctx context.Context, address, aeTitle string, registry *services.Registry, opts ...Option) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return dimseerrors.NewNetworkError("listen", err)
	}
	defer listener.Close()

	srv := New(aeTitle, registry, opts...)
	return srv.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is cancelled or an
// unrecoverable error occurs. Associations still open when ctx ends are
// dropped and waited for.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return errors.New("dimsenet server: listener is required")
	}
	if s == nil {
		return errors.New("dimsenet server: server is nil")
	}
	if s.Registry == nil {
		return errors.New("dimsenet server: registry is required")
	}
	if s.AETitle == "" {
		return errors.New("dimsenet server: AE title is required")
	}

	logger := s.logger()
	engine := s.Engine
	if engine == nil {
		engine = dimse.New(dimse.Config{Logger: logger})
	}
	cfg := pdu.Config{
		AETitle:      s.AETitle,
		MaxPDULength: s.MaxPDULength,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		Policy:       s.Policy,
		Logger:       logger,
	}
	if cfg.Policy == nil {
		cfg.Policy = s.Registry.AcceptPolicy()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	logger.Info("DICOM server listening",
		"address", listener.Addr().String(),
		"ae_title", s.AETitle,
		"commands", len(s.Registry.RegisteredCommands()))

	var (
		wg       sync.WaitGroup
		serveErr error
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				logger.Warn("Accept timeout", "error", err)
				continue
			}
			serveErr = dimseerrors.NewNetworkError("accept", err)
			break
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.handleConnection(ctx, c, engine, cfg, logger)
		}(conn)
	}

	wg.Wait()

	if serveErr != nil {
		return serveErr
	}

	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, engine *dimse.Engine, cfg pdu.Config, logger *slog.Logger) {
	logger = logger.With("remote_addr", conn.RemoteAddr().String())

	// Unblocks negotiation and the registry's reads on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	assoc, err := pdu.Accept(conn, cfg)
	if err != nil {
		logger.Warn("Association not established", "error", err)
		return
	}
	logger = logger.With("calling_ae", assoc.RemoteAETitle())

	if err := s.Registry.Serve(ctx, engine, assoc, s.ReadTimeout, logger); err != nil && ctx.Err() == nil {
		logger.Warn("DIMSE association ended",
			"error", err)
	} else {
		logger.Info("DIMSE association closed")
	}
	_ = assoc.Close()
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
