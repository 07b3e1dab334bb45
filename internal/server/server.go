package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/catatsuy/kioku/internal/cache"
	"github.com/catatsuy/kioku/internal/metrics"
	"github.com/catatsuy/kioku/internal/protocol"
	"golang.org/x/sync/errgroup"
)

var ErrNilStore = errors.New("server: nil cache store")

type Config struct {
	ListenAddr    string
	Separator     string
	MaxFrameBytes int
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
}

type Server struct {
	cfg    Config
	store  *cache.Guarded
	parser *protocol.Parser

	mu        sync.RWMutex
	listener  net.Listener
	conns     map[net.Conn]struct{}
	readyCh   chan struct{}
	readyOnce sync.Once
	closed    bool

	handlers sync.WaitGroup

	logger *slog.Logger
}

// NewServer wires a server around store. The store is shared by every
// connection; the server never creates its own.
func NewServer(cfg Config, store *cache.Guarded) (*Server, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if cfg.Separator == "" {
		cfg.Separator = protocol.DefaultSeparator
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}

	parser, err := protocol.NewParser(cfg.Separator)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Server{
		cfg:     cfg,
		store:   store,
		parser:  parser,
		conns:   make(map[net.Conn]struct{}),
		readyCh: make(chan struct{}),
		logger:  logger,
	}, nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.readyCh
}

func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled or Close is called. It
// returns after every connection handler has finished.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })

	s.logger.Info("listening",
		slog.String("addr", ln.Addr().String()),
		slog.String("separator", s.cfg.Separator),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})
	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(ctx, ln)
	})

	err = g.Wait()
	s.handlers.Wait()
	s.logger.Info("server stopped")
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("temporary accept error", slog.Any("err", err))
				continue
			}
			s.logger.Error("accept error", slog.Any("err", err))
			return err
		}

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.handlers.Go(func() {
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		})
	}
}

// Close stops accepting and closes every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for conn := range s.conns {
		_ = conn.Close()
	}
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}
