package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var openLocator string

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a session against a router and print the negotiated zid/peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := dial(context.Background(), openLocator)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("zid:      %s\n", s.ZID())
		fmt.Printf("peer_zid: %s\n", s.PeerZID())
		fmt.Printf("state:    %s\n", s.State())
		return nil
	},
}

func init() {
	openCmd.Flags().StringVar(&openLocator, "locator", "", "locator to dial, e.g. tcp/127.0.0.1:7447 (overrides config)")
}
