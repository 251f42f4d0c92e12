// Package main provides the claude-statusline entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tau/claude-statusline/internal/monitor"
	"github.com/tau/claude-statusline/internal/statusline"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "claude-statusline",
		Short: "Compact color-coded statusline for a Claude Code session",
		Long: `claude-statusline reads a session request document on stdin, pulls
live usage and version data, mines the session transcript for background
agents and todos, and prints a one-line color-coded summary.

Wire it up as the statusLine command in Claude Code settings; run
'claude-statusline monitor' for a live view while debugging.`,
		Version: version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			// The statusline must never fail the host: every error path
			// inside Run degrades or prints a diagnostic, and we exit 0.
			statusline.New().Run(os.Stdin, os.Stdout)
		},
	}

	var transcriptPath string
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live view over the same aggregation pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := &statusline.Input{TranscriptPath: transcriptPath}
			if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
				if parsed, err := statusline.ParseInput(os.Stdin); err == nil {
					parsed.TranscriptPath = firstNonEmpty(transcriptPath, parsed.TranscriptPath)
					in = parsed
				}
			}
			return monitor.Run(statusline.New(), in)
		},
	}
	monitorCmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "path to the session transcript (JSONL)")

	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
