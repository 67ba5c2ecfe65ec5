package cli

import (
	"context"

	"github.com/glorpus-work/modsync/pkg/engine"
	"github.com/spf13/cobra"
)

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var (
		dryRun       bool
		keepPrevious bool
		concurrency  int
		duplicates   string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update every mod in the mods directory",
		Long: `Update every mod in the mods directory to the newest version compatible
with the configured game version and loader.

Each mod is identified from its embedded record, or inferred from its file
hash and name when untracked. Mods are processed independently: one failure
never stops the others, and a failed replacement leaves the original file in
place. Disabled mods stay disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withChangeSession(cmd.Context(), func(ctx context.Context, s *session) error {
				opts := engine.UpdateOptions{
					DryRun:          dryRun,
					KeepPrevious:    keepPrevious || s.cfg.Settings.KeepPrevious,
					Concurrency:     s.cfg.Settings.Concurrency,
					DuplicatePolicy: engine.DuplicatePolicy(s.cfg.Settings.DuplicatePolicy),
				}
				if cmd.Flags().Changed("concurrency") {
					opts.Concurrency = concurrency
				}
				if cmd.Flags().Changed("duplicates") {
					opts.DuplicatePolicy = engine.DuplicatePolicy(duplicates)
				}
				return runUpdate(ctx, s, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and print actions without downloading")
	cmd.Flags().BoolVar(&keepPrevious, "keep-previous", false, "Keep each replaced file as <name>.bak")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of mods processed in parallel (defaults to config)")
	cmd.Flags().StringVar(&duplicates, "duplicates", "", "Policy for several files of one project: reject or keep-newest")

	return cmd
}

func runUpdate(ctx context.Context, s *session, opts engine.UpdateOptions) error {
	c, err := constraints(s.cfg)
	if err != nil {
		return err
	}
	report, err := s.engine.UpdateDirectory(ctx, s.cfg.Settings.ModsDir, c, opts)
	if err != nil {
		return err
	}
	return printReport(s.cfg, report)
}
