package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pdf-viewer-server",
		Short: "Render PDF pages for thin display clients",
		Long: `pdf-viewer-server streams rendered PDF pages to thin remote display
clients over a persistent WebSocket channel.

Each client owns a viewing session bound to one open document. Documents
are parsed once and cached; pages are rasterized on demand with a
quality/size policy and persisted per session until the idle-session
sweep removes them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pdf-viewer-server %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
