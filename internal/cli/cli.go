package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/catatsuy/kioku/internal/cache"
	"github.com/catatsuy/kioku/internal/metrics"
	"github.com/catatsuy/kioku/internal/server"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

var Version string

func version() string {
	if Version != "" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "(devel)"
	}

	return info.Main.Version
}

// exitError carries the process exit code out of a command action.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type CLI struct {
	stdout     io.Writer
	stderr     io.Writer
	stdin      io.Reader
	isTerminal bool

	// environ replaces the process environment when non-nil.
	environ map[string]string
	// onReady is called with the bound address once the server listens.
	onReady func(addr string)
}

func NewCLI(stdout, stderr io.Writer, stdin io.Reader, isTerminal bool) *CLI {
	return &CLI{
		stdout:     stdout,
		stderr:     stderr,
		stdin:      stdin,
		isTerminal: isTerminal,
	}
}

// Run executes the command line and returns the process exit code. SIGINT
// and SIGTERM stop the server gracefully.
func (c *CLI) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.RunContext(ctx, args)
}

func (c *CLI) RunContext(ctx context.Context, args []string) int {
	err := c.command().Run(ctx, args)
	if err == nil {
		return ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintf(c.stderr, "kioku: %v\n", ee.err)
		return ee.code
	}
	// flag parsing errors have already been reported by urfave/cli
	return ExitUsage
}

func (c *CLI) command() *cli.Command {
	return &cli.Command{
		Name:      "kioku",
		Usage:     "in-memory LRU cache server speaking a memcached-like text protocol",
		Flags:     flags(),
		Writer:    c.stdout,
		ErrWriter: c.stderr,
		Reader:    c.stdin,
		ExitErrHandler: func(context.Context, *cli.Command, error) {
			// exit codes are mapped by RunContext
		},
		Action: c.action,
	}
}

func (c *CLI) action(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Fprintf(c.stdout, "kioku version %s; %s\n", version(), runtime.Version())
		return nil
	}

	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}

	logger, closer, err := newLogger(cfg.Log, c.stderr, c.isTerminal)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}
	defer closer.Close()

	store, err := cache.NewCache(cfg.Cache.Capacity)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}
	guarded := cache.NewGuarded(store)

	rec, err := metrics.NewRecorder(otel.GetMeterProvider(), guarded.Stats)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	defer rec.Close()

	srv, err := server.NewServer(server.Config{
		ListenAddr:    cfg.ListenAddr(),
		Separator:     cfg.Protocol.Separator,
		MaxFrameBytes: cfg.Server.MaxFrameBytes,
		Logger:        logger,
		Metrics:       rec,
	}, guarded)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}

	logger.Info("starting kioku",
		slog.String("version", version()),
		slog.Int("capacity", cfg.Cache.Capacity),
	)

	if c.onReady != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-srv.Ready():
				c.onReady(srv.Addr())
			case <-ctx.Done():
			case <-done:
			}
		}()
	}

	if err := srv.Serve(ctx); err != nil {
		return &exitError{code: ExitError, err: fmt.Errorf("server failed: %w", err)}
	}
	return nil
}
