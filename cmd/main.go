package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "job-intake",
	Short: "Job search intake pipeline",
	Long: "job-intake accepts job searches, runs them through the automation engine, charges user credits " +
		"once per run and stores the found job postings.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
