package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"OpenMCP-EVM/sdk/go/openmcp"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	callArgs   string
	jsonOutput bool
	eventLimit int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call tools on a running server",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered tools",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool with JSON arguments",
	Long: `Call a tool by name. Arguments are passed as a JSON object.

Examples:
  evmmcpd tools call get_chain_info --args '{"network":"bsc"}'
  evmmcpd tools call quote_usdt --args '{"side":"buy","amount":"10"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsCall,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recently broadcast transactions",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	toolsCallCmd.Flags().StringVarP(&callArgs, "args", "a", "{}", "Tool arguments as a JSON object")
	toolsCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	eventsCmd.Flags().IntVarP(&eventLimit, "limit", "n", 20, "Number of events to show")

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd, eventsCmd)
}

func newAPIClient() (*openmcp.Client, error) {
	client, err := openmcp.NewClient(serverURL, nil)
	if err != nil {
		return nil, err
	}
	if apiToken != "" {
		client.SetAccessToken(apiToken)
	}
	return client, nil
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	list, err := client.ListTools(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, list)
	}

	out := cmd.OutOrStdout()
	for _, tool := range list {
		fmt.Fprintf(out, "%s  %s\n", color.CyanString(tool.Name), tool.Description)
		for _, p := range tool.Params {
			marker := ""
			if p.Required {
				marker = color.YellowString(" (required)")
			}
			fmt.Fprintf(out, "    %s %s%s\n", p.Name, color.HiBlackString(p.Type), marker)
		}
	}
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	var toolArgs map[string]any
	dec := json.NewDecoder(strings.NewReader(callArgs))
	dec.UseNumber()
	if err := dec.Decode(&toolArgs); err != nil {
		return fmt.Errorf("--args 必须是 JSON 对象: %w", err)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	res, err := client.CallTool(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if res.IsError {
		fmt.Fprintln(out, color.RedString(res.Text()))
		return fmt.Errorf("tool %s failed", args[0])
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, []byte(res.Text()), "", "  ") == nil {
		fmt.Fprintln(out, color.GreenString(pretty.String()))
		return nil
	}
	fmt.Fprintln(out, color.GreenString(res.Text()))
	return nil
}

func runEvents(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	list, err := client.Events(cmd.Context(), eventLimit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, list)
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, color.HiBlackString("no transactions recorded"))
		return nil
	}
	for _, evt := range list {
		fmt.Fprintf(out, "%s  %-14s %-12s %s\n",
			evt.CreatedAt.Format("2006-01-02 15:04:05"),
			color.CyanString(evt.Kind),
			evt.Network,
			color.HiBlackString(evt.Hash),
		)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
