package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dialflow",
	Short: "Dialflow executes conversational flow graphs on live calls",
	Long: `Dialflow compiles flow graph definitions and runs them against live
phone calls: conversation turns, semantic transition judgment, barge-in
handling, DTMF, transfers, and SMS, behind pluggable capability ports.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}
