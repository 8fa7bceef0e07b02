package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ownership-validator/internal/cli"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ownershipd",
		Short:   "Ownership quiz daemon",
		Long:    "Serves ownership quizzes over HTTP (serve) or the Model Context Protocol (mcp)",
		Version: version,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MCPCmd(version))

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
