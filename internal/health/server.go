package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ShayCichocki/replica/internal/exec"
	"github.com/ShayCichocki/replica/internal/loop"
)

const (
	// DefaultPollInterval is the delay between readiness probes.
	DefaultPollInterval = 500 * time.Millisecond
	shutdownTimeout     = 5 * time.Second
	outputExcerpt       = 2000
)

// staticRoots are tried in order for a project without a serve command.
var staticRoots = []string{"dist", "build", "out", "public", "."}

// Server starts the generated project: its serve command when one is
// configured or detected, otherwise an in-process static file server.
type Server struct {
	runner  exec.CommandRunner
	starter exec.Starter
	cmds    Commands
	poll    time.Duration
	client  *http.Client
}

// NewServer creates a Server. runner is used for project detection and
// starter for the serve command.
func NewServer(runner exec.CommandRunner, starter exec.Starter, cmds Commands) *Server {
	return &Server{
		runner:  runner,
		starter: starter,
		cmds:    cmds,
		poll:    DefaultPollInterval,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches the project in dir on a free local port.
func (s *Server) Start(ctx context.Context, dir string) (loop.Instance, error) {
	cmds := DetectCommands(ctx, s.runner, dir, s.cmds)
	if cmds.Serve == "" {
		return s.startStatic(dir)
	}

	port, err := freePort()
	if err != nil {
		return nil, err
	}
	command := expandPort(cmds.Serve, port)
	url := expandPort(cmds.ServeURL, port)
	if url == "" {
		url = "http://127.0.0.1:" + strconv.Itoa(port) + "/"
	}

	proc, err := s.starter.Start(ctx, dir, command, "PORT="+strconv.Itoa(port), "BROWSER=none")
	if err != nil {
		return nil, err
	}
	return &processInstance{proc: proc, url: url, client: s.client, poll: s.poll}, nil
}

func (s *Server) startStatic(dir string) (loop.Instance, error) {
	root := StaticRoot(dir)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Handle("/*", http.FileServer(http.Dir(root)))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	inst := &staticInstance{
		srv:    srv,
		url:    "http://" + ln.Addr().String() + "/",
		client: s.client,
		poll:   s.poll,
		done:   make(chan error, 1),
	}
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		inst.done <- err
	}()
	return inst, nil
}

// StaticRoot returns the first build output directory under dir that holds
// an index.html, or dir itself.
func StaticRoot(dir string) string {
	for _, name := range staticRoots {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(filepath.Join(candidate, "index.html")); err == nil {
			return candidate
		}
	}
	return dir
}

type processInstance struct {
	proc   exec.Process
	url    string
	client *http.Client
	poll   time.Duration
}

func (i *processInstance) URL() string { return i.url }

func (i *processInstance) WaitReady(ctx context.Context) error {
	return waitHTTP(ctx, i.client, i.url, i.poll, func() error {
		if !i.proc.Exited() {
			return nil
		}
		return fmt.Errorf("server exited (%v): %s", i.proc.Err(), excerpt(i.proc.Output()))
	})
}

func (i *processInstance) Stop() error { return i.proc.Stop() }

type staticInstance struct {
	srv    *http.Server
	url    string
	client *http.Client
	poll   time.Duration
	done   chan error
}

func (i *staticInstance) URL() string { return i.url }

func (i *staticInstance) WaitReady(ctx context.Context) error {
	return waitHTTP(ctx, i.client, i.url, i.poll, func() error { return nil })
}

func (i *staticInstance) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := i.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-i.done
}

// waitHTTP polls url until it answers with a non-5xx status. alive is called
// before each probe so a crashed server fails fast.
func waitHTTP(ctx context.Context, client *http.Client, url string, poll time.Duration, alive func() error) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var lastErr error
	for {
		if err := alive(); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last probe: %v)", ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func expandPort(s string, port int) string {
	return strings.ReplaceAll(s, "{port}", strconv.Itoa(port))
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputExcerpt {
		s = "..." + s[len(s)-outputExcerpt:]
	}
	return s
}

var (
	_ loop.Checker = (*Checker)(nil)
	_ loop.Server  = (*Server)(nil)
)
