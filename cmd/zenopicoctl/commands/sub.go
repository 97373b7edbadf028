package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/zenopico/pkg/handler"
)

var subLocator string

var subCmd = &cobra.Command{
	Use:   "sub <key-expr>",
	Short: "Subscribe to a key expression and print samples until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := dial(ctx, subLocator)
		if err != nil {
			return err
		}
		defer s.Close()

		h := handler.NewCallback(func(sample handler.Sample) {
			if sample.Kind == handler.KindDelete {
				fmt.Printf("delete %s\n", sample.KE)
				return
			}
			fmt.Printf("put    %s  %s\n", sample.KE, sample.Payload)
		}, func(reason error) {
			fmt.Fprintf(os.Stderr, "subscriber dropped: %v\n", reason)
		})

		if _, err := s.DeclareSubscriber(ctx, args[0], h); err != nil {
			return fmt.Errorf("declare subscriber: %w", err)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		fmt.Println("subscribed. Press Ctrl+C to stop.")
		<-sigChan
		signal.Stop(sigChan)
		return nil
	},
}

func init() {
	subCmd.Flags().StringVar(&subLocator, "locator", "", "locator to dial, e.g. tcp/127.0.0.1:7447 (overrides config)")
}
