package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	putLocator  string
	putEncoding string
)

var putCmd = &cobra.Command{
	Use:   "put <key-expr> <value>",
	Short: "Put a value on a key expression",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := dial(context.Background(), putLocator)
		if err != nil {
			return err
		}
		defer s.Close()

		return s.Put(context.Background(), args[0], putEncoding, []byte(args[1]))
	},
}

func init() {
	putCmd.Flags().StringVar(&putLocator, "locator", "", "locator to dial, e.g. tcp/127.0.0.1:7447 (overrides config)")
	putCmd.Flags().StringVar(&putEncoding, "encoding", "text/plain", "value encoding")
}
