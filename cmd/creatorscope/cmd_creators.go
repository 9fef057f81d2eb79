package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
	"github.com/codeGROOVE-dev/creatorscope/pkg/directory"
	"github.com/codeGROOVE-dev/creatorscope/pkg/resolver"
	"github.com/codeGROOVE-dev/creatorscope/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the total number of creators, brands and users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := stats.New(cli.client, stats.WithLogger(cli.logger))
		defer p.Close()
		s, ok := p.Fetch(contextOf(cmd))
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), newStatsView(s, ok))
		}
		printStats(cmd.OutOrStdout(), s, ok)
		return nil
	},
}

var topCmd = &cobra.Command{
	Use:       "top [platform]",
	Short:     "List the highest-engagement creators on a platform",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(creator.YouTube), string(creator.Instagram), string(creator.Twitter)},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cli.platformArg(args)
		if err != nil {
			return err
		}
		d := directory.New(cli.client, directory.WithLogger(cli.logger))
		defer d.Close()
		entries, err := d.SelectPlatform(contextOf(cmd), p)
		if err != nil {
			return describe(err)
		}
		return writeEntries(cmd, entries)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search creators across every platform",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.Join(args, " ")
		if strings.TrimSpace(q) == "" {
			return errors.New("empty search query")
		}
		d := directory.New(cli.client, directory.WithLogger(cli.logger))
		defer d.Close()
		entries, err := d.Search(contextOf(cmd), q)
		if err != nil {
			return describe(err)
		}
		return writeEntries(cmd, entries)
	},
}

// dashboardCmd loads the counters and the top list together, as the
// dashboard screen does on mount.
var dashboardCmd = &cobra.Command{
	Use:   "dashboard [platform]",
	Short: "Show the counters and the top creators of a platform",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDashboard,
}

var profilePlatform string

var profileCmd = &cobra.Command{
	Use:   "profile <record-id>",
	Short: "Show a creator profile, optionally on another linked platform",
	Long: `Show the metrics, sentiment, connections and recent posts of one profile.

With --platform, the same creator's profile on that platform is shown
instead. If the creator is not linked or has no profile there, the requested
profile is shown with a notice.`,
	Args: cobra.ExactArgs(1),
	RunE: runProfile,
}

func init() {
	profileCmd.Flags().StringVar(&profilePlatform, "platform", "", "switch to this platform after loading")
}

func writeEntries(cmd *cobra.Command, entries []creator.DirectoryEntry) error {
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), entries)
	}
	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	platform, err := cli.platformArg(args)
	if err != nil {
		return err
	}

	p := stats.New(cli.client, stats.WithLogger(cli.logger))
	defer p.Close()
	d := directory.New(cli.client, directory.WithLogger(cli.logger), directory.WithPlatform(platform))
	defer d.Close()

	var (
		counters creator.AggregateStats
		ok       bool
		entries  []creator.DirectoryEntry
	)
	g, ctx := errgroup.WithContext(contextOf(cmd))
	g.Go(func() error {
		counters, ok = p.Fetch(ctx)
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = d.SelectPlatform(ctx, platform)
		return err
	})
	if err := g.Wait(); err != nil {
		return describe(err)
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), struct {
			Stats    statsView                `json:"stats"`
			Platform creator.Platform         `json:"platform"`
			Creators []creator.DirectoryEntry `json:"creators"`
		}{newStatsView(counters, ok), platform, entries})
	}
	w := cmd.OutOrStdout()
	printStats(w, counters, ok)
	fmt.Fprintf(w, "\nTop %s creators\n", platform.Label())
	printEntries(w, entries)
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)
	r := resolver.New(cli.client, resolver.WithLogger(cli.logger))
	defer r.Close()

	notice, err := loadProfile(ctx, r, args[0], profilePlatform)
	if err != nil {
		return err
	}
	if notice != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}

	st := r.State()
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), newProfileView(st))
	}
	printProfile(cmd.OutOrStdout(), st)
	return nil
}

// loadProfile loads id and then switches to platform when one is given.
// A failed switch keeps the loaded profile; the returned notice says why.
func loadProfile(ctx context.Context, r *resolver.Resolver, id, platform string) (string, error) {
	if _, err := r.LoadByRecordID(ctx, id); err != nil {
		if errors.Is(err, creator.ErrProfileNotFound) {
			return "", fmt.Errorf("no profile with id %q", id)
		}
		return "", describe(err)
	}
	if platform == "" {
		return "", nil
	}

	target := creator.ParsePlatform(platform)
	if creator.Lookup(target) == nil {
		return "", fmt.Errorf("unknown platform %q (want one of %v)", platform, creator.Selectable())
	}
	if _, err := r.Switch(ctx, target); errors.Is(err, creator.ErrNoIdentity) {
		return "This creator is not linked to other platforms.", nil
	}
	// Other switch failures are kept in the resolver state as PlatformErr.
	return "", nil
}
