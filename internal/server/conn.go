package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/catatsuy/kioku/internal/cache"
	"github.com/catatsuy/kioku/internal/command"
	"github.com/catatsuy/kioku/internal/protocol"
	"github.com/google/uuid"
)

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(
		slog.String("conn", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Debug("connection opened")
	s.cfg.Metrics.ConnOpened(ctx)
	defer s.cfg.Metrics.ConnClosed(ctx)

	fr := protocol.NewFrameReader(conn, s.parser.Separator(), s.cfg.MaxFrameBytes)
	w := bufio.NewWriter(conn)

	for {
		frame, err := fr.Next()
		if err != nil {
			s.readFailed(ctx, logger, w, err)
			return
		}

		reply, silent := s.process(ctx, logger, frame)
		if silent {
			continue
		}
		if _, err := w.Write(reply); err != nil {
			logger.Warn("write failed", slog.Any("err", err))
			return
		}
		if err := w.Flush(); err != nil {
			logger.Warn("write failed", slog.Any("err", err))
			return
		}
	}
}

// process decodes and executes one frame. The cache lock is held only
// around Execute. silent reports that the client asked for no reply.
func (s *Server) process(ctx context.Context, logger *slog.Logger, frame []byte) (reply []byte, silent bool) {
	req, err := s.parser.Decode(frame)
	if err != nil {
		kind := protocol.Kind(err)
		logger.Debug("rejected frame", slog.String("kind", kind), slog.Any("err", err))
		s.cfg.Metrics.FrameError(ctx, kind)
		return []byte(protocol.ErrorReply(err)), false
	}

	var outcome command.Outcome
	s.store.Do(func(c *cache.Cache) {
		reply, outcome = command.Execute(c, req)
	})

	logger.Debug("command",
		slog.String("verb", req.Verb.String()),
		slog.String("key", req.Key),
		slog.String("outcome", outcome.String()),
	)
	s.cfg.Metrics.Command(ctx, req.Verb.String(), outcome.String())

	return reply, req.NoReply && req.Verb.IsWrite()
}

func (s *Server) readFailed(ctx context.Context, logger *slog.Logger, w *bufio.Writer, err error) {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		logger.Debug("connection closed")
	case errors.Is(err, bufio.ErrTooLong):
		// The stream cannot be resynchronized after an oversize segment.
		logger.Warn("frame too large", slog.Int("max_frame_bytes", s.cfg.MaxFrameBytes))
		s.cfg.Metrics.FrameError(ctx, "frame_too_large")
		_, _ = w.WriteString(protocol.ErrorReply(err))
		_ = w.Flush()
	default:
		logger.Warn("read failed", slog.Any("err", err))
	}
}
