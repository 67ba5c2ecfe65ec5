package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/modsync/pkg/identity"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for mods",
		Long: `Search every enabled provider for a mod.

Results are scored by name similarity, best matches first. A score above the
confidence threshold with a clear lead is what "install <query>" would pick.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				return runSearch(ctx, s, args[0])
			})
		},
	}

	return cmd
}

type searchResult struct {
	Identity model.Identity `json:"identity"`
	Score    float64        `json:"score"`
}

func runSearch(ctx context.Context, s *session, query string) error {
	only, err := providerFlag()
	if err != nil {
		return err
	}
	candidates, err := identity.NewResolver(s.engine.Providers).Candidates(ctx, query, only)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput(s.cfg) {
		out := make([]searchResult, 0, len(candidates))
		for _, c := range candidates {
			out = append(out, searchResult{Identity: c.Identity, Score: c.Score})
		}
		return printJSON(out)
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROVIDER\tID\tSLUG\tNAME\tSCORE")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\n", c.Identity.Provider, c.Identity.ID, c.Identity.Slug, c.Identity.Name, c.Score)
	}
	return tw.Flush()
}
