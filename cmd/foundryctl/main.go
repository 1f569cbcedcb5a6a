package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petal-labs/foundryctl/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if code := cli.ExitCode(err); code != 0 {
		os.Exit(code)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foundryctl",
	Short: "AI Foundry agent and guardrails deployment CLI",
	Long:  "foundryctl: deploy agent definitions and content-filter guardrails to Azure AI Foundry, and verify deployment repositories.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("history-db", "", "Path to the deployment history database (default: $FOUNDRYCTL_HISTORY_DB or ~/.foundryctl/foundryctl.db)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("foundryctl version %s\n", version))

	rootCmd.AddCommand(cli.NewAgentCmd())
	rootCmd.AddCommand(cli.NewGuardrailsCmd())
	rootCmd.AddCommand(cli.NewVerifyCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
}
