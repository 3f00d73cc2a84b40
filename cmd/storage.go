package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/cache"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired entries from the resolution cache",
	Long: `Delete cached resolutions whose TTL has passed.

The server sweeps on its own schedule (cache.sweep_interval); this runs one
pass immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		backend, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		deleted, err := cache.NewStore(backend).Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweeping: %w", err)
		}

		out := cmd.OutOrStdout()
		if deleted == 0 {
			fmt.Fprintln(out, "Nothing to sweep.")
		} else {
			fmt.Fprintf(out, "Swept %d expired entr%s.\n", deleted, plural(deleted, "y", "ies"))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if strings.EqualFold(cfg.Cache.Driver, "memory") {
			fmt.Fprintln(out, "Cache: in-memory (nothing persisted)")
			return nil
		}

		dbPath := cfg.CachePath()
		db, err := cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		count, size, err := db.Stats(cmd.Context(), dbPath)
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Fprintf(out, "Cache: %s\n", dbPath)
		fmt.Fprintf(out, "Entries: %d\n", count)
		fmt.Fprintf(out, "Size: %s\n", formatBytes(size))
		return nil
	},
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
