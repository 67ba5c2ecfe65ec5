package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/toggle"
	"github.com/spf13/cobra"
)

// NewEnableCmd creates the enable command.
func NewEnableCmd() *cobra.Command {
	return newToggleCmd("enable", model.Enabled, "Enable mods", `Enable one or more mods by renaming "<name>.disabled" back to "<name>".

Names may be given with or without the .disabled suffix. Enabling an
enabled mod does nothing.`)
}

// NewDisableCmd creates the disable command.
func NewDisableCmd() *cobra.Command {
	return newToggleCmd("disable", model.Disabled, "Disable mods", `Disable one or more mods by renaming "<name>" to "<name>.disabled", so the
game skips them. The embedded record is kept and "update" still updates
disabled mods.`)
}

func newToggleCmd(use string, state model.ToggleState, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " NAME...",
		Short: short,
		Long:  long,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChangeSession(cmd.Context(), func(ctx context.Context, s *session) error {
				desired := make(map[string]model.ToggleState, len(args))
				for _, name := range args {
					desired[name] = state
				}
				return runToggle(ctx, s, desired)
			})
		},
	}
}

type toggleView struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`
	From    model.ToggleState `json:"from,omitempty"`
	To      model.ToggleState `json:"to"`
	Changed bool              `json:"changed"`
	Error   string            `json:"error,omitempty"`
}

func runToggle(ctx context.Context, s *session, desired map[string]model.ToggleState) error {
	results, err := s.engine.ApplyToggles(ctx, s.cfg.Settings.ModsDir, desired)
	if err != nil {
		return err
	}

	if jsonOutput(s.cfg) {
		out := make([]toggleView, 0, len(results))
		for _, r := range results {
			v := toggleView{Name: r.Name, Path: r.NewPath, From: r.From, To: r.To, Changed: r.Changed}
			if r.Err != nil {
				v.Error = r.Err.Error()
			}
			out = append(out, v)
		}
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 0, TabWidth, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tSTATE\tRESULT")
		for _, r := range results {
			result := "unchanged"
			switch {
			case r.Err != nil:
				result = r.Err.Error()
			case r.Changed:
				result = "renamed"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.To, result)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return toggleErr(results)
}

func toggleErr(results toggle.Results) error {
	failed := results.Failed()
	if len(failed) == 0 {
		return nil
	}
	for _, r := range failed {
		logger.Error("Toggle failed", logger.Fields{"name": r.Name, "error": r.Err})
	}
	return fmt.Errorf("%d of %d toggles failed (%s)", len(failed), len(results), results.Status())
}
