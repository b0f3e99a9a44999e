// Command ownkitd serves pooled buffer leases over gRPC and keeps a durable
// record of every managed resource's lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ownkitd",
	Short: "Ownership-tracked buffer lease server",
	Long: `ownkitd hands out pooled byte buffers as shared leases and weak watches,
records every lifecycle transition in a pebble ledger, publishes them to
Kafka and writes a leak report on shutdown.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.AddCommand(serveCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
