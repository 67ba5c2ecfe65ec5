package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var nameFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mods in the mods directory",
		Long: `List every mod in the mods directory with its toggle state and the
provider, project and version from its embedded record. Untracked mods have
no record yet; "update" identifies and tracks them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				return runList(ctx, s, nameFilter)
			})
		},
	}

	cmd.Flags().StringVar(&nameFilter, "name", "", "Filter mods by file name (partial match)")

	return cmd
}

func runList(ctx context.Context, s *session, nameFilter string) error {
	listing, err := s.engine.ListArtifacts(ctx, s.cfg.Settings.ModsDir)
	if err != nil {
		return err
	}
	if nameFilter != "" {
		filtered := listing[:0]
		for _, l := range listing {
			if strings.Contains(strings.ToLower(l.Name), strings.ToLower(nameFilter)) {
				filtered = append(filtered, l)
			}
		}
		listing = filtered
	}

	if jsonOutput(s.cfg) {
		return printJSON(listing)
	}
	if len(listing) == 0 {
		_, _ = fmt.Fprintln(stdout, "No mods found")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSTATE\tPROVIDER\tPROJECT\tVERSION\tNOTE")
	for _, l := range listing {
		provider, project, version := "-", "-", "-"
		if l.Record != nil {
			provider, project, version = string(l.Record.Provider), l.Record.ProjectID, l.Record.VersionID
		}
		var note string
		switch {
		case l.Conflict:
			note = "present both enabled and disabled"
		case l.MetadataError != "":
			note = "ignored record: " + l.MetadataError
		case l.Record == nil:
			note = "untracked"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.Name, l.State, provider, project, version, note)
	}
	return tw.Flush()
}
