// Package serve implements the serve subcommand that runs the API server.
package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/africaresearchbase/arb/internal/conf"
	"github.com/africaresearchbase/arb/internal/server"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the research base API server",
		Long:  "Start the HTTP API for dataset upload, scoring, review and points.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Address and port to listen on")
	cmd.Flags().StringVar(&settings.Output.SQLite.Path, "dbpath", viper.GetString("output.sqlite.path"), "Path to the SQLite database file")
	cmd.Flags().BoolVar(&settings.AI.Enabled, "ai", viper.GetBool("ai.enabled"), "Enable AI dataset analysis")
	cmd.Flags().BoolVar(&settings.Chain.Enabled, "chain", viper.GetBool("chain.enabled"), "Enable on-chain dataset registration")
	cmd.Flags().BoolVar(&settings.Events.Enabled, "events", viper.GetBool("events.enabled"), "Enable AMQP lifecycle events")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
