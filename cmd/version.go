package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("websearch-mcp %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
