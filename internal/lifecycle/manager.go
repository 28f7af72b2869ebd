// Package lifecycle owns the process-lifetime resources of the server: the
// listening sockets, OS signal handling, background jobs and the exit code.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-backend/internal/config"
	"nutrifit-backend/internal/fault"
)

const defaultShutdownTimeout = 15 * time.Second

// Manager starts the API listener (and optionally the metrics listener),
// waits for SIGINT/SIGTERM or an unrecoverable failure, and drains.
type Manager struct {
	cfg     config.Config
	log     zerolog.Logger
	srv     *http.Server
	admin   *http.Server
	console io.Writer
	signals <-chan os.Signal
	exit    func(int)

	ln      net.Listener
	adminLn net.Listener
	started chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup

	mu     sync.Mutex
	closed bool

	failed       chan *fault.Fault
	failOnce     sync.Once
	shutdownOnce sync.Once
	shutdownErr  error
}

func New(cfg config.Config, handler http.Handler, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg: cfg,
		log: logger,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          log.New(logger.With().Str("component", "http").Logger(), "", 0),
		},
		console: os.Stdout,
		exit:    os.Exit,
		started: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		failed:  make(chan *fault.Fault, 1),
	}
}

// WithSignals replaces OS signal delivery, so tests can trigger shutdown.
func (m *Manager) WithSignals(ch <-chan os.Signal) *Manager {
	m.signals = ch
	return m
}

// WithExit replaces os.Exit on the unrecoverable-failure path.
func (m *Manager) WithExit(exit func(code int)) *Manager {
	m.exit = exit
	return m
}

// WithConsole sets where the startup banner goes. Defaults to stdout.
func (m *Manager) WithConsole(w io.Writer) *Manager {
	m.console = w
	return m
}

// WithMetrics serves h at /metrics on a second listener bound to addr.
func (m *Manager) WithMetrics(addr string, h http.Handler) *Manager {
	if addr == "" || h == nil {
		return m
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	m.admin = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: m.cfg.ReadHeaderTimeout,
	}
	return m
}

// Started is closed once the listeners are bound.
func (m *Manager) Started() <-chan struct{} {
	return m.started
}

// Addr is the bound API address, empty before Start.
func (m *Manager) Addr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// MetricsAddr is the bound metrics address, empty when disabled.
func (m *Manager) MetricsAddr() string {
	if m.adminLn == nil {
		return ""
	}
	return m.adminLn.Addr().String()
}

// Start binds the listeners, prints the banner and serves in the
// background. A serve error after this point is unrecoverable.
func (m *Manager) Start() error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	m.ln = ln

	if m.admin != nil {
		adminLn, err := net.Listen("tcp", m.admin.Addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s for metrics: %w", m.admin.Addr, err)
		}
		m.adminLn = adminLn
	}

	m.banner()
	ev := m.log.Info().
		Str("addr", ln.Addr().String()).
		Str("env", m.cfg.NodeEnv).
		Strs("cors_origins", m.cfg.CORSOrigins)
	if m.adminLn != nil {
		ev = ev.Str("metrics_addr", m.adminLn.Addr().String())
	}
	ev.Msg("server started")

	m.serve("http", m.srv, m.ln)
	if m.adminLn != nil {
		m.serve("metrics", m.admin, m.adminLn)
	}
	close(m.started)
	return nil
}

func (m *Manager) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.fail(name, fault.Unrecoverable(fmt.Errorf("%s listener: %w", name, err)))
		}
	}()
}

func (m *Manager) banner() {
	port := m.cfg.Port
	if tcp, ok := m.ln.Addr().(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
	}
	origins := strings.Join(m.cfg.CORSOrigins, ", ")
	if origins == "" {
		origins = "(none)"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("╔════════════════════════════════════════╗\n")
	b.WriteString("║       Nutrifit Backend Server          ║\n")
	b.WriteString("╚════════════════════════════════════════╝\n\n")
	fmt.Fprintf(&b, "✓ Server running on port %s\n", port)
	fmt.Fprintf(&b, "✓ Environment: %s\n", m.cfg.NodeEnv)
	fmt.Fprintf(&b, "✓ CORS enabled for: %s\n", origins)
	fmt.Fprintf(&b, "✓ Health check available at: http://localhost:%s/health\n", port)
	if m.adminLn != nil {
		fmt.Fprintf(&b, "✓ Metrics available at: http://%s/metrics\n", m.adminLn.Addr())
	}
	b.WriteString("\nPress Ctrl+C to stop the server\n")
	_, _ = io.WriteString(m.console, b.String())
}

// Go runs fn in the background with a context that is cancelled on
// Shutdown. A panic in fn terminates the process with exit code 1.
func (m *Manager) Go(name string, fn func(ctx context.Context)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.jobs.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.jobs.Done()
		defer func() {
			if v := recover(); v != nil {
				m.fail(name, fault.Unrecoverable(fault.FromPanic(v, debug.Stack())))
			}
		}()
		fn(m.ctx)
	}()
}

func (m *Manager) fail(name string, f *fault.Fault) {
	m.failOnce.Do(func() {
		m.log.Error().
			Err(f).
			Str("source", name).
			Str("kind", f.Kind.String()).
			Str("stack", f.Stack).
			Msg("Unhandled failure")
		m.failed <- f
		m.exit(1)
	})
}

// Shutdown stops accepting connections and waits for in-flight requests
// and background jobs until ctx is done. Connections still open at the
// deadline are closed. Only the first call does any work.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		m.cancel()

		var errs []error
		if err := m.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain http: %w", err))
			_ = m.srv.Close()
		}
		if m.admin != nil {
			if err := m.admin.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("drain metrics: %w", err))
				_ = m.admin.Close()
			}
		}

		done := make(chan struct{})
		go func() {
			m.jobs.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("background jobs: %w", ctx.Err()))
		}
		m.shutdownErr = errors.Join(errs...)
	})
	return m.shutdownErr
}

// Run starts the server and blocks until SIGINT/SIGTERM or an
// unrecoverable failure. It returns the process exit code.
func (m *Manager) Run() int {
	if err := m.Start(); err != nil {
		m.log.Error().Err(err).Msg("server failed to start")
		return 1
	}

	signals := m.signals
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	select {
	case sig := <-signals:
		name := signalName(sig)
		m.log.Info().Str("signal", name).Msg(name + " received. Shutting down gracefully...")

		timeout := m.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := m.Shutdown(ctx); err != nil {
			m.log.Error().Err(err).Dur("timeout", timeout).Msg("shutdown timed out, remaining connections closed")
			return 1
		}
		m.log.Info().Msg("Server closed")
		return 0

	case <-m.failed:
		m.cancel()
		_ = m.srv.Close()
		if m.admin != nil {
			_ = m.admin.Close()
		}
		return 1
	}
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return strings.ToUpper(sig.String())
	}
}
