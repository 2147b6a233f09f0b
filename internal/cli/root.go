package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/guiyumin/vfeed/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "vfeed",
	Short: "Cached X/Twitter media timeline feed",
	Long: `vfeed fetches a user's X/Twitter media timeline, keeps the best video
variant of each post in a local snapshot file, and serves it over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
	}
	return err
}

// loadConfig loads the config file with environment overrides. A missing
// or broken file is reported and the command runs on defaults plus
// environment.
func loadConfig(cmd *cobra.Command) *config.Config {
	if !config.Exists() {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("No config file at %s, using defaults and environment. Run 'vfeed config twitter set'.", config.SavePath()))
	}
	return config.LoadOrDefault(osFs, cmd.ErrOrStderr())
}
