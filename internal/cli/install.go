package cli

import (
	"context"
	"strings"

	"github.com/glorpus-work/modsync/pkg/engine"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command.
func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install <query|provider:project-id>",
		Aliases: []string{"add"},
		Short:   "Install a mod and its required dependencies",
		Long: `Install a mod into the mods directory.

The target is either a search query ("sodium"), resolved with the same
confidence rules as file name inference, or an exact project reference
("modrinth:AANobbMI", "github:CaffeineMC/sodium"). Required dependencies that
are missing from the directory are installed too. If the project is already
installed it is updated in place instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChangeSession(cmd.Context(), func(ctx context.Context, s *session) error {
				return runInstall(ctx, s, args[0])
			})
		},
	}

	return cmd
}

// parseTarget accepts "provider:id" for an exact project and anything else as
// a search query.
func parseTarget(arg string) engine.Target {
	arg = strings.TrimSpace(arg)
	if tagPart, id, ok := strings.Cut(arg, ":"); ok && id != "" {
		if tag, err := model.ParseProviderTag(tagPart); err == nil {
			return engine.Target{Identity: model.Identity{Provider: tag, ID: id}}
		}
	}
	return engine.Target{Query: arg}
}

func runInstall(ctx context.Context, s *session, arg string) error {
	c, err := constraints(s.cfg)
	if err != nil {
		return err
	}
	report, err := s.engine.ResolveAndInstall(ctx, s.cfg.Settings.ModsDir, parseTarget(arg), c)
	if err != nil {
		return err
	}
	return printReport(s.cfg, report)
}
