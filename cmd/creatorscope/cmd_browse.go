package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/creatorscope/pkg/directory"
	"github.com/codeGROOVE-dev/creatorscope/pkg/resolver"
	"github.com/codeGROOVE-dev/creatorscope/pkg/stats"
)

// browseCmd runs the interactive dashboard. Logs go to browse.log in the
// user cache directory.
var browseCmd = &cobra.Command{
	Use:   "browse [platform]",
	Short: "Browse creators interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	platform, err := cli.platformArg(args)
	if err != nil {
		return err
	}
	ctx := contextOf(cmd)

	var src backend = cli.client
	dir := directory.New(src, directory.WithLogger(cli.logger), directory.WithPlatform(platform))
	res := resolver.New(src, resolver.WithLogger(cli.logger))
	sp := stats.New(src, stats.WithLogger(cli.logger))
	defer func() {
		dir.Close()
		res.Close()
		sp.Close()
	}()

	p := tea.NewProgram(newModel(ctx, dir, res, sp), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
