package main

import (
	"fmt"
	"strings"

	"OpenMCP-EVM/internal/config"
	"OpenMCP-EVM/internal/web3"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the configured EVM networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworks,
}

func init() {
	rootCmd.AddCommand(networksCmd)
}

func runNetworks(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	networks := web3.DefaultNetworks()
	if cfg.Web3.ChainConfig != "" {
		if networks, err = web3.LoadNetworks(cfg.Web3.ChainConfig); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, name := range networks.Names() {
		n, _ := networks.Lookup(name)
		line := fmt.Sprintf("%-18s chain %-8d %-6s", color.CyanString(n.Name), n.ChainID, n.NativeSymbol)
		if len(n.Aliases) > 0 {
			line += color.HiBlackString(" aliases: %s", strings.Join(n.Aliases, ", "))
		}
		if n.SupportsENS() {
			line += color.GreenString(" ens")
		}
		if name == cfg.Web3.DefaultNetwork {
			line += color.YellowString(" (default)")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
