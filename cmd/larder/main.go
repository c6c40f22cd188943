package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "larder",
	Short:         "Pantry expiry-risk and recommendation engine",
	Long:          "larder tracks pantry items, scores their expiry risk, and recommends what to consume, reorder, or discard.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the larder version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("larder version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(outcomeCmd)

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
