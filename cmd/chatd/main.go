package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatd",
		Short: "Real-time channel messaging server",
		Long: "chatd delivers channel messages, typing presence and channel announcements " +
			"to authenticated WebSocket clients.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
