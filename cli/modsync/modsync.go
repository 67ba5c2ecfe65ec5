package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glorpus-work/modsync/internal/cli"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	verbose      bool
	noColor      bool
	outputFormat string
	modsDir      string
	gameVersion  string
	loader       string
	providerTag  string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modsync",
		Short: "Keep a Minecraft mods folder in sync with its providers",
		Long: `modsync installs, updates and toggles the mods in a mods directory:
- install: resolve a mod and its required dependencies and install them
- update: bring every mod to the newest compatible version
- list, enable, disable: inspect and toggle mods without touching their contents`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/modsync/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (text, json)")
	cmd.PersistentFlags().StringVarP(&modsDir, "dir", "d", "", "mods directory (default from config)")
	cmd.PersistentFlags().StringVarP(&gameVersion, "game-version", "g", "", "target game version, e.g. 1.21.1")
	cmd.PersistentFlags().StringVarP(&loader, "loader", "l", "", "target loader (fabric, forge, neoforge, quilt)")
	cmd.PersistentFlags().StringVarP(&providerTag, "provider", "p", "", "restrict lookups to one provider (modrinth, curseforge, github)")

	// Set up CLI package variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.NoColor = &noColor
	cli.OutputFormat = &outputFormat
	cli.ModsDir = &modsDir
	cli.GameVersion = &gameVersion
	cli.Loader = &loader
	cli.Provider = &providerTag

	// Add subcommands
	cmd.AddCommand(
		cli.NewInstallCmd(),
		cli.NewUpdateCmd(),
		cli.NewListCmd(),
		cli.NewSearchCmd(),
		cli.NewEnableCmd(),
		cli.NewDisableCmd(),
		cli.NewConfigCmd(),
		cli.NewHooksCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
