package connect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Listener is a loopback HTTP server that receives one authorization
// redirect.
type Listener struct {
	srv    *http.Server
	ln     net.Listener
	ch     chan *Redirect
	logger *slog.Logger
	done   chan struct{}
	path   string
	once   sync.Once
}

// Listen starts serving the path of redirectURL on its host and port.
// Port 0 picks a free port; URL reports the address in use.
func Listen(ctx context.Context, redirectURL string, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect URL: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("redirect URL must be http://host:port/path, got %q", redirectURL)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", u.Host, err)
	}

	l := &Listener{
		ln:     ln,
		ch:     make(chan *Redirect, 1),
		logger: logger,
		done:   make(chan struct{}),
		path:   path,
	}

	r := chi.NewRouter()
	r.Get(path, l.callback)
	l.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		defer close(l.done)
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("redirect listener stopped", "error", err)
		}
	}()

	logger.DebugContext(ctx, "redirect listener started", "url", l.URL())
	return l, nil
}

func (l *Listener) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rd := &Redirect{
		Code:        q.Get("code"),
		Error:       q.Get("error"),
		ErrorReason: q.Get("error_reason"),
		State:       q.Get("state"),
	}

	delivered := false
	l.once.Do(func() {
		l.ch <- rd
		delivered = true
	})
	if !delivered {
		http.Error(w, "This authorization request was already handled.", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if rd.Error != "" || rd.Code == "" {
		_, _ = fmt.Fprintln(w, "Connection failed. You can close this window and return to the terminal.") //nolint:errcheck // best effort
		return
	}
	_, _ = fmt.Fprintln(w, "Received. You can close this window and return to the terminal.") //nolint:errcheck // best effort
}

// URL returns the redirect URL served, with the actual port.
func (l *Listener) URL() string {
	return "http://" + l.ln.Addr().String() + l.path
}

// Wait blocks until the redirect arrives or ctx is done.
func (l *Listener) Wait(ctx context.Context) (*Redirect, error) {
	select {
	case rd := <-l.ch:
		return rd, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the server down.
func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := l.srv.Shutdown(ctx)
	<-l.done
	return err
}
