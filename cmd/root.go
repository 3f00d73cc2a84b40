package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig       string
	flagVersionCheck bool
)

var rootCmd = &cobra.Command{
	Use:   "drc",
	Short: "Disaster response enrichment and delivery service",
	Long: `drc resolves free-text reports to coordinates, scores the authenticity of
image references, aggregates ranked social media updates per disaster and
pushes changes to subscribed clients over websockets.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")

	versionCmd.Flags().BoolVar(&flagVersionCheck, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(watchCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "drc %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagVersionCheck {
			return
		}
		if res := update.Check(cmd.Context(), version); res != nil {
			fmt.Fprintf(out, "A newer release is available: %s %s\n", res.LatestVersion, res.URL)
		} else {
			fmt.Fprintln(out, "You are on the latest release.")
		}
	},
}

// Execute runs the root command under fang.
func Execute(ctx context.Context) error {
	rootCmd.Version = version
	return fang.Execute(ctx, rootCmd)
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
