package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	apiToken   string
)

var rootCmd = &cobra.Command{
	Use:   "evmmcpd",
	Short: "EVM tool server for MCP style agents",
	Long: `evmmcpd exposes EVM chain reads, transfers, swaps and wallet management
as named tools over HTTP.

Examples:
  evmmcpd serve --config configs/openmcp.yaml
  evmmcpd tools list
  evmmcpd tools call get_balance --args '{"address":"vitalik.eth","network":"ethereum"}'
  evmmcpd networks`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultConfig := os.Getenv("OPENMCP_CONFIG")
	if defaultConfig == "" {
		defaultConfig = filepath.Join("configs", "openmcp.yaml")
	}
	defaultServer := os.Getenv("OPENMCP_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://127.0.0.1:8080"
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to the YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Base URL of a running evmmcpd (tools commands)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("OPENMCP_TOKEN"), "Bearer token for the tool API")
}
