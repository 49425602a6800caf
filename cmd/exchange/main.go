// Command exchange runs the exchange core as a standalone process: it
// boots the configured symbols, drives the market to its configured
// initial state, and serves Prometheus metrics until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "exchange",
	Short: "exchange runs the order-book and matching engine core",
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to bootstrap config (default configs/exchange.yaml, or $EXCH_CONFIG)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	if p := os.Getenv("EXCH_CONFIG"); p != "" {
		return p
	}
	return "configs/exchange.yaml"
}
