/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/

// The capture command renders an archived snapshot in Chrome and saves the
// resulting HTML.
//
// Features:
//   - Pick the oldest capture of a URL, or the first one at or after --timestamp.
//   - Customize the Chrome/Chromium executable path used for rendering.
//   - Choose between headless or headful Chrome execution.
//   - Wait for a specified CSS selector before capturing.
//   - Inline stylesheets and images so the saved file stands alone.
//
// Example usage:
//
//	echoes capture myspace.com --out=myspace.html --inline
//	echoes capture geocities.com --timestamp=2001 --headful --wait-selector="#content"
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/store"
	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Render an archived snapshot of a URL with Chrome",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCapture(cmd, args[0]); err != nil {
			log.Fatalf("Capture failed: %v", err)
		}
	},
}

// runCapture is the main function for the capture command.
func runCapture(cmd *cobra.Command, target string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := initLogger(cmd, cfg)

	timestamp, err := cmd.Flags().GetString("timestamp")
	if err != nil {
		return fmt.Errorf("failed to read --timestamp: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to read --timeout: %w", err)
	}
	waitSelector, err := cmd.Flags().GetString("wait-selector")
	if err != nil {
		return fmt.Errorf("failed to read --wait-selector: %w", err)
	}
	chromePath, err := cmd.Flags().GetString("chrome-path")
	if err != nil {
		return fmt.Errorf("failed to read --chrome-path: %w", err)
	}
	headful, err := cmd.Flags().GetBool("headful")
	if err != nil {
		return fmt.Errorf("failed to read --headful: %w", err)
	}
	inline, err := cmd.Flags().GetBool("inline")
	if err != nil {
		return fmt.Errorf("failed to read --inline: %w", err)
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to read --out: %w", err)
	}

	if chromePath == "" && runtime.GOOS == "darwin" {
		// Best-effort default for macOS.
		chromePath = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
	}

	ctx := context.Background()

	snapshots, err := newIndex(cfg, logger).Query(ctx, target)
	if err != nil {
		return err
	}
	snap, ok := pickSnapshot(snapshots, timestamp)
	if !ok {
		return core.NotFound(core.MsgNoSnapshots)
	}
	log.Printf("Capturing %s from %s", target, snap.CapturedAt)

	result, err := core.CaptureSnapshot(ctx, snap.ArchiveURL, core.CaptureOptions{
		ChromePath:   chromePath,
		Headless:     !headful,
		Timeout:      timeout,
		WaitSelector: waitSelector,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	html := result.HTML
	if inline {
		base := result.FinalURL
		if base == "" {
			base = snap.ArchiveURL
		}
		opts := core.DefaultInlineOptions(base)
		opts.Logger = logger
		html, err = core.InlineSnapshot(ctx, html, opts)
		if err != nil {
			return fmt.Errorf("failed to inline snapshot: %w", err)
		}
	}

	if err := writeOutput(cmd.OutOrStdout(), outPath, html); err != nil {
		return err
	}
	if result.Title != "" {
		log.Printf("Captured %q (%d bytes)", result.Title, len(html))
	}
	return nil
}

// pickSnapshot returns the first snapshot captured at or after timestamp,
// comparing digit strings. An empty timestamp picks the first snapshot.
func pickSnapshot(snapshots []store.Snapshot, timestamp string) (store.Snapshot, bool) {
	timestamp = strings.TrimSpace(timestamp)
	for _, s := range snapshots {
		if timestamp == "" || s.CapturedAt >= timestamp {
			return s, true
		}
	}
	return store.Snapshot{}, false
}

func writeOutput(stdout io.Writer, path, html string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, html)
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("timestamp", "", "Capture the first snapshot at or after this timestamp prefix (e.g. 2004)")
	captureCmd.Flags().Duration("timeout", 35*time.Second, "Capture timeout")
	captureCmd.Flags().String("wait-selector", "", "Optional CSS selector to wait for (useful for JS-heavy pages)")
	captureCmd.Flags().String("chrome-path", "", "Path to Chrome/Chromium executable")
	captureCmd.Flags().Bool("headful", false, "Run Chrome with a visible window (not headless)")
	captureCmd.Flags().Bool("inline", false, "Inline stylesheets and images into the saved HTML")
	captureCmd.Flags().StringP("out", "o", "", "Write HTML to this file instead of stdout")
}
