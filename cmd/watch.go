package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/tui"
)

var flagServer string

var watchCmd = &cobra.Command{
	Use:   "watch <room>",
	Short: "Monitor a room's live events in the terminal",
	Long: `Connect to a running drc server and show the events published to a room.

A bare id is taken as a disaster id, so "drc watch 42" watches disaster_42.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := parseRoomArg(args[0])
		if err != nil {
			return err
		}

		server := flagServer
		if server == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			server = serverURL(cfg.Server.Addr)
		}

		conn, err := hub.Dial(server)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", server, err)
		}
		return tui.Run(tui.RunOpts{Conn: conn, Room: room, Server: server})
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagServer, "server", "", "server base url (default derived from server.addr)")
}

func parseRoomArg(s string) (hub.RoomID, error) {
	if !strings.Contains(s, "_") {
		room := hub.DisasterRoom(s)
		return room, room.Validate()
	}
	return hub.ParseRoomID(s)
}

// serverURL turns a listen address into a local base url.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
