package cli

import (
	"fmt"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/hooks"
	"github.com/spf13/cobra"
)

// NewHooksCmd creates the hooks command.
func NewHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage update hooks",
		Long: `Hooks are Tengo scripts in the hooks directory run around every replacement:
pre-update.tengo runs before a new file is moved into place and can veto it by
setting err; post-update.tengo runs afterwards and only logs failures.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write hook templates into the hooks directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			written, err := hooks.WriteTemplates(cfg.Settings.HooksDir)
			if err != nil {
				return err
			}
			for _, path := range written {
				_, _ = fmt.Fprintln(stdout, path)
			}
			logger.Success("Hook templates ready", logger.Fields{"dir": cfg.Settings.HooksDir, "written": len(written)})
			return nil
		},
	})

	return cmd
}
