package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "onion-gateway",
	Short: "onion-gateway is a hidden-service-fronted resource gateway",
	Long:  "A resource gateway reachable only through an anonymity-network hidden service: a local listener the external daemon forwards to, guarded by a host allowlist.",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
