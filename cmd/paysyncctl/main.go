package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paysyncctl",
		Short:         "Operate the payment callback service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts := &apiOptions{}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("PAYSYNC_SERVER", "http://localhost:8080"), "Service base URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("API_KEY"), "Operator API token")

	for _, action := range []string{"status", "capture", "refund", "cancel"} {
		rootCmd.AddCommand(orderCmd(action, opts))
	}
	rootCmd.AddCommand(reconcileCmd(opts))
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(settingsCmd())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
