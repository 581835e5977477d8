// Package cli implements the parley command tree.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/parley-ai/parley/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"  ____            _\n" +
		" |  _ \\ __ _ _ __| | ___ _   _\n" +
		" | |_) / _` | '__| |/ _ \\ | | |\n" +
		" |  __/ (_| | |  | |  __/ |_| |\n" +
		" |_|   \\__,_|_|  |_|\\___|\\__, |\n" +
		"                         |___/\n"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - multi-party AI conversations",
	Long:  color.CyanString(logo) + "\nTopics with AI responders, delegated identities, and streamed replies.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parley %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printHeader(title string) {
	color.New(color.FgCyan, color.Bold).Println(title)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(statusCmd)
}
