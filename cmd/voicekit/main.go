// Command voicekit runs realtime voice sessions and the services they
// depend on.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
	"github.com/AltairaLabs/VoiceKit/runtime/version"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagEnvFile = "env-file"
)

var rootCmd = &cobra.Command{
	Use:           "voicekit",
	Short:         "VoiceKit - realtime voice conversation sessions",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `VoiceKit opens a realtime audio conversation with a speech endpoint,
keeps a live transcript, answers tool calls locally and ends idle sessions
after a visible countdown.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString(flagEnvFile)
		if err := loadEnv(envFile); err != nil {
			return err
		}
		if cmd.Flags().Changed(flagVerbose) {
			verbose, err := cmd.Flags().GetBool(flagVerbose)
			if err != nil {
				return fmt.Errorf("error getting verbose flag: %w", err)
			}
			logger.SetVerbose(verbose)
		}
		version.LogStartup(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP(flagConfig, "c", "", "VoiceSession manifest (YAML)")
	rootCmd.PersistentFlags().BoolP(flagVerbose, "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String(flagEnvFile, ".env", "Environment file loaded before configuration")
	rootCmd.SetVersionTemplate(version.Get().String() + "\n")
}

// loadEnv reads KEY=value pairs from path without overriding variables
// that are already set. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
