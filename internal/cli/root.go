package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ucai/ucaibot/internal/cli.version=1.2.3"
	version = "2.0.0"
	logo    = "\n" +
		"  _   _  ____      _    ___\n" +
		" | | | |/ ___|    / \\  |_ _|\n" +
		" | | | | |  ____ / _ \\  | |\n" +
		" | |_| | |_|___ / ___ \\ | |\n" +
		"  \\___/ \\____| /_/   \\_\\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "ucaibot",
	Short: "ucaibot - the AM chat agent",
	Long:  color.CyanString(logo) + "\nA message-triggered chat agent for Slack, backed by a remote or local model.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader(cmd.OutOrStdout(), "UC-AI Version")
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.CyanString(logo))
	if title != "" {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
}
