package cmd

import (
	"github.com/spf13/cobra"

	"github.com/africaresearchbase/arb/cmd/serve"
	"github.com/africaresearchbase/arb/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arb",
		Short: "Africa Research Base CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(serve.Command(settings))

	return rootCmd
}

// setupFlags configures global flags shared by all commands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
}
