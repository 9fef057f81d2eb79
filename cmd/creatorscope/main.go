// Command creatorscope browses creator analytics from the terminal.
//
// Usage:
//
//	creatorscope login --email me@example.com --password secret
//	creatorscope top youtube
//	creatorscope profile 65f1c0ffee --platform instagram
//	creatorscope browse
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/creatorscope/pkg/api"
	"github.com/codeGROOVE-dev/creatorscope/pkg/config"
	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/httpcache"
	"github.com/codeGROOVE-dev/creatorscope/pkg/session"
)

var (
	configPath string
	verbose    bool
	noCache    bool
	jsonOutput bool
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	cache   *httpcache.Cache
	store   *session.SQLiteStore
	sess    *session.Session
	client  *api.Client
	logFile *os.File
}

var cli *app

var rootCmd = &cobra.Command{
	Use:   "creatorscope",
	Short: "Creator analytics from the terminal",
	Long: `creatorscope lists top creators per platform, searches the creator
directory, shows a creator's metrics, sentiment and linked accounts, and
connects your account to the Instagram Graph API.

Run "creatorscope browse" for the interactive dashboard.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "debug", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable HTTP caching")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, registerCmd)
	rootCmd.AddCommand(statsCmd, topCmd, searchCmd, dashboardCmd, profileCmd)
	rootCmd.AddCommand(connectCmd, browseCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cli != nil {
		cli.close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	ctx := contextOf(cmd)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	a := &app{cfg: cfg}
	cli = a

	// Setup logger
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if cmd.Name() == "browse" {
		// The terminal belongs to the dashboard.
		f, err := openLogFile()
		if err != nil {
			out = io.Discard
		} else {
			a.logFile = f
			out = f
		}
	}
	a.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

	// Setup cache
	a.cache = httpcache.NewNull()
	if !noCache && cfg.CacheTTL > 0 {
		var c *httpcache.Cache
		if cfg.CacheDir != "" {
			c, err = httpcache.NewWithPath(cfg.CacheTTL, cfg.CacheDir)
		} else {
			c, err = httpcache.New(cfg.CacheTTL)
		}
		if err != nil {
			a.logger.Warn("failed to initialize cache, continuing without cache", "error", err)
		} else {
			a.cache = c
			a.logger.Debug("HTTP cache initialized", "ttl", cfg.CacheTTL.String())
		}
	}

	// Setup session
	a.store, err = session.OpenSQLite(ctx, cfg.SessionDB)
	if err != nil {
		return err
	}
	a.sess, err = session.Open(ctx, a.store, session.WithLogger(a.logger))
	if err != nil {
		return err
	}

	var tokens api.TokenSource = a.sess
	if cfg.Token != "" {
		tokens = api.StaticToken(cfg.Token)
	}
	a.client, err = api.New(ctx,
		api.WithBaseURL(cfg.APIURL),
		api.WithHTTPCache(a.cache),
		api.WithTokenSource(tokens),
		api.WithTimeout(cfg.Timeout),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithLogger(a.logger),
	)
	return err
}

func (a *app) close() {
	if s := httpcache.CacheStats(); s.Hits+s.Misses > 0 {
		a.logger.Debug("HTTP cache stats", "hits", s.Hits, "misses", s.Misses)
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close cache", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close session store", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close() //nolint:errcheck,gosec // best effort on exit
	}
}

// apiHost returns the host the backend runs on, for cookie lookup.
func (a *app) apiHost() string {
	u, err := url.Parse(a.cfg.APIURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// platformArg resolves a platform argument, falling back to the configured default.
func (a *app) platformArg(args []string) (creator.Platform, error) {
	raw := a.cfg.DefaultPlat
	if len(args) > 0 {
		raw = args[0]
	}
	p := creator.ParsePlatform(raw)
	if creator.Lookup(p) == nil {
		return "", fmt.Errorf("unknown platform %q (want one of %v)", raw, creator.Selectable())
	}
	return p, nil
}

func openLogFile() (*os.File, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "creatorscope")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "browse.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
