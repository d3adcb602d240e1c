// Package cli provides the command-line interface for careerpulse.
package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/careerpulse/internal/client"
	"github.com/raphaelgruber/careerpulse/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "careerpulse",
	Short: "Career insights for vocational guidance",
	Long: `CareerPulse streams labor-market insights about a career or topic,
lets you pick the ones that matter and saves them to a student profile.

The CLI talks to a running careerpulse-server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if serverURL != "" {
			cfg.ServerURL = serverURL
		}
		apiClient = client.New(cfg.ServerURL, cfg.ClientTimeout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $CAREERPULSE_SERVER_URL or http://localhost:8585)")

	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(statsCmd)
}

// warnf prints a warning to stderr.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
