/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"bytes"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/seckatie/echoes/internal/core/config"
)

func TestRootCmd_Flags(t *testing.T) {
	tests := []struct {
		name         string
		flagName     string
		defaultValue interface{}
		flagType     string
		persistent   bool
	}{
		{
			name:         "config flag has correct default",
			flagName:     "config",
			defaultValue: "",
			flagType:     "string",
			persistent:   true,
		},
		{
			name:         "log-level flag has correct default",
			flagName:     "log-level",
			defaultValue: "info",
			flagType:     "string",
			persistent:   true,
		},
		{
			name:         "variant flag has correct default",
			flagName:     "variant",
			defaultValue: "wrapped",
			flagType:     "string",
			persistent:   true,
		},
		{
			name:         "port flag has correct default",
			flagName:     "port",
			defaultValue: 3001,
			flagType:     "int",
		},
		{
			name:         "host flag has correct default",
			flagName:     "host",
			defaultValue: "localhost",
			flagType:     "string",
		},
		{
			name:         "completion-mode flag has correct default",
			flagName:     "completion-mode",
			defaultValue: "deferred",
			flagType:     "string",
		},
		{
			name:         "store flag has correct default",
			flagName:     "store",
			defaultValue: "memory",
			flagType:     "string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var flag interface{}
			var err error

			flags := rootCmd.Flags()
			if tt.persistent {
				flags = rootCmd.PersistentFlags()
			}

			switch tt.flagType {
			case "string":
				flag, err = flags.GetString(tt.flagName)
			case "int":
				flag, err = flags.GetInt(tt.flagName)
			}

			if err != nil {
				t.Fatalf("Failed to get flag %s: %v", tt.flagName, err)
			}

			if flag != tt.defaultValue {
				t.Errorf("Flag %s: got %v, want %v", tt.flagName, flag, tt.defaultValue)
			}
		})
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	for _, name := range []string{"lookup", "capture"} {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}

		if !found {
			t.Errorf("Expected %s subcommand to be registered", name)
		}
	}
}

func TestRootCmd_UsageOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	// Test that usage doesn't error
	err := rootCmd.Usage()
	if err != nil {
		t.Errorf("Usage() returned error: %v", err)
	}

	output := buf.String()
	if output == "" {
		t.Error("Expected usage output, got empty string")
	}
}

func TestRootCmd_CommandMetadata(t *testing.T) {
	if rootCmd.Use != "echoes" {
		t.Errorf("Expected Use to be 'echoes', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
}

func TestLoadConfig_FlagsOverrideConfig(t *testing.T) {
	t.Setenv("ECHOES_CONFIG", "")
	t.Setenv("ECHOES_COMPLETION_MODE", "")
	t.Setenv("PORT", "")

	if err := rootCmd.ParseFlags([]string{"--port=4000", "--completion-mode=immediate", "--store=sqlite"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	defer func() {
		_ = rootCmd.Flags().Set("port", "3001")
		_ = rootCmd.Flags().Set("completion-mode", "deferred")
		_ = rootCmd.Flags().Set("store", "memory")
	}()

	cfg, err := loadConfig(rootCmd)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Expected port 4000, got %d", cfg.Server.Port)
	}
	if cfg.Resurrect.CompletionMode != "immediate" {
		t.Errorf("Expected completion mode immediate, got %s", cfg.Resurrect.CompletionMode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Expected store sqlite, got %s", cfg.Store.Driver)
	}
}

func TestLoadConfig_RejectsInvalidFlag(t *testing.T) {
	t.Setenv("ECHOES_CONFIG", "")
	t.Setenv("ECHOES_COMPLETION_MODE", "")

	if err := rootCmd.ParseFlags([]string{"--completion-mode=eventually"}); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	defer func() { _ = rootCmd.Flags().Set("completion-mode", "deferred") }()

	if _, err := loadConfig(rootCmd); err == nil {
		t.Error("Expected invalid completion mode to be rejected")
	}
}

func TestInitLogger_WritesToErrStream(t *testing.T) {
	prevLogger, prevWriter, prevFlags := slog.Default(), log.Writer(), log.Flags()
	defer func() {
		slog.SetDefault(prevLogger)
		log.SetOutput(prevWriter)
		log.SetFlags(prevFlags)
	}()

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{Use: "capture"}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	cfg := config.Default()
	cfg.Logging.Level = "debug"
	logger := initLogger(cmd, cfg)

	logger.Info("capturing snapshot", "url", "http://web.archive.org/web/2007/myspace.com")
	log.Printf("Capturing %s", "myspace.com")

	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "capturing snapshot") {
		t.Errorf("expected structured log on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "Capturing myspace.com") {
		t.Errorf("expected standard log on stderr, got %q", stderr.String())
	}
}
