package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ownership-validator/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := cli.QuizCmd(version)

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
