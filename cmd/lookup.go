/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The lookup command queries the archive index for a URL and prints the
// captures it knows about, together with the personality the oldest one
// would give the ghost.
//
// Example usage:
//
//	echoes lookup myspace.com
//	echoes lookup geocities.com --variant=identity --json
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/persona"
	"github.com/seckatie/echoes/internal/core/store"
	"github.com/spf13/cobra"
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <url>",
	Short: "List archived snapshots of a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLookup(cmd, args[0]); err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}
	},
}

type lookupResult struct {
	URL         string            `json:"url"`
	Personality store.Personality `json:"personality"`
	Snapshots   []store.Snapshot  `json:"snapshots"`
}

func runLookup(cmd *cobra.Command, target string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := initLogger(cmd, cfg)

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json: %w", err)
	}

	snapshots, err := newIndex(cfg, logger).Query(context.Background(), target)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return core.NotFound(core.MsgNoSnapshots)
	}

	result := lookupResult{
		URL:         target,
		Personality: persona.Derive(target, snapshots[0].CapturedAt),
		Snapshots:   snapshots,
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printLookup(cmd.OutOrStdout(), result)
}

func printLookup(out io.Writer, result lookupResult) error {
	fmt.Fprintf(out, "%s\n\n", result.Personality.Greeting)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tSTATUS\tMIME\tSNAPSHOT")
	for _, s := range result.Snapshots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.CapturedAt, s.StatusCode, s.MimeType, s.ArchiveURL)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().Bool("json", false, "Print the result as JSON")
}
