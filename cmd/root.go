/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "levelup",
	Short: "LevelUp university rating platform backend",
	Long: `Backend for the LevelUp university rating platform.

Run "levelup server" to start the API, "levelup worker" to start the
mail delivery worker, and "levelup migrate" to manage the database
schema.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
