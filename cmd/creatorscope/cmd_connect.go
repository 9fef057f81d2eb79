package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/creatorscope/pkg/connect"
	"github.com/codeGROOVE-dev/creatorscope/pkg/session"
)

var (
	connectTimeout time.Duration
	connectForce   bool
)

// connectCmd links the account to the Instagram Graph API.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect your account to the Instagram Graph API",
	Long: `Print the Facebook Login URL, wait for the browser to return to the local
redirect address, and hand the authorization code to the backend.

The OAuth client id comes from oauth.client_id in the config file or
CREATORSCOPE_OAUTH_CLIENT_ID.`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 5*time.Minute, "how long to wait for the browser redirect")
	connectCmd.Flags().BoolVar(&connectForce, "force", false, "connect again even if already connected")
}

func runConnect(cmd *cobra.Command, _ []string) error {
	ctx := contextOf(cmd)
	w := cmd.OutOrStdout()

	if _, ok := cli.sess.User(); !ok {
		return session.ErrNotLoggedIn
	}
	if cli.sess.Connected() && !connectForce {
		fmt.Fprintln(w, "Instagram account already connected.")
		return nil
	}
	if cli.cfg.OAuth.ClientID == "" {
		return errors.New("no OAuth client id configured (set oauth.client_id or CREATORSCOPE_OAUTH_CLIENT_ID)")
	}

	rec := connect.NewReconciler(cli.sess, cli.client,
		connect.WithLogger(cli.logger),
		connect.WithNoticeTTL(cli.cfg.NoticeTTL),
	)

	l, err := connect.Listen(ctx, cli.cfg.OAuth.RedirectURL, cli.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Close(); err != nil {
			cli.logger.Warn("failed to stop redirect listener", "error", err)
		}
	}()

	state := connect.NewState()
	rec.ExpectState(state)
	authURL := connect.AuthorizeURL(connect.Config{
		ClientID:    cli.cfg.OAuth.ClientID,
		RedirectURL: l.URL(),
		Scopes:      cli.cfg.OAuth.Scopes,
	}, state)

	fmt.Fprintf(w, "Open this URL in your browser to connect Instagram:\n\n  %s\n\nWaiting for the redirect...\n", authURL)

	waitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	rd, err := l.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for redirect: %w", err)
	}

	outcome, err := rec.HandleRedirect(ctx, rd)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	if outcome.Kind == connect.Failed {
		msg := connect.Message(outcome.Reason)
		if n, ok := rec.Notice(); ok {
			msg = n.Message
		}
		return fmt.Errorf("%s (%s)", msg, outcome.Reason)
	}
	fmt.Fprintln(w, "Instagram account connected.")
	return nil
}
