package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
)

var (
	flagTags       []string
	flagLocation   string
	flagDisasterID string
	flagLimit      int
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run one resolution and print the tagged result as JSON",
}

var resolveGeocodeCmd = &cobra.Command{
	Use:   "geocode <text>",
	Short: "Resolve free text to a location",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			res, err := a.geocoder.Resolve(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("geocoding: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var resolveVerifyCmd = &cobra.Command{
	Use:   "verify <image-reference>",
	Short: "Score the authenticity of an image reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			res, err := a.verifier.Verify(cmd.Context(), args[0], disasterContext(flagDisasterID))
			if err != nil {
				return fmt.Errorf("verifying: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var resolveUpdatesCmd = &cobra.Command{
	Use:   "updates <disaster-id>",
	Short: "Aggregate and rank social media updates for a disaster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			feed, err := a.updates.Fetch(cmd.Context(), args[0], disasterContext(args[0]), flagLimit)
			if err != nil {
				return fmt.Errorf("fetching updates: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), feed)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{resolveVerifyCmd, resolveUpdatesCmd} {
		c.Flags().StringSliceVar(&flagTags, "tags", nil, "disaster tags, comma separated")
		c.Flags().StringVar(&flagLocation, "location", "", "disaster location name")
	}
	resolveVerifyCmd.Flags().StringVar(&flagDisasterID, "disaster", "", "disaster id the image belongs to")
	resolveUpdatesCmd.Flags().IntVar(&flagLimit, "limit", 0, "max updates to return (config default when 0)")

	resolveCmd.AddCommand(resolveGeocodeCmd, resolveVerifyCmd, resolveUpdatesCmd)
}

func disasterContext(id string) resolve.Context {
	return resolve.Context{EntityID: id, Tags: flagTags, Location: flagLocation}
}

// withApp loads config, builds the services and closes them after fn.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
