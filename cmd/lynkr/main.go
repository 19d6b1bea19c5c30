package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	lynkr "github.com/lynkr-ai/lynkr-go-sdk"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "lynkr",
		Short: "Turn natural-language requests into Lynkr API actions",
		Long: `lynkr looks up the field schema for a natural-language request,
fills stored service keys into it and executes the action.

It can also expose the schema and execute tools to agents over MCP or HTTP,
or run an interactive OpenAI-backed chat.`,
		Version:       lynkr.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "lynkr.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSchemaCommand(a),
		newExecuteCommand(a),
		newRunCommand(a),
		newKeysCommand(a),
		newMCPCommand(a),
		newServeCommand(a),
		newChatCommand(a),
		newInitCommand(a),
	)

	return rootCmd
}
