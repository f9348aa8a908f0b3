package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sensorlink",
	Short: "Stream BLE sensor telemetry to the ingestion API",
	Long: `Connects to BLE telemetry sensors and streams their readings:

- Negotiate the notify/write characteristic pair of an unknown sensor
- Stream temperature, accelerometer and battery readings to the terminal
- Forward every reading to the ingestion API when api.base_url is configured
- Keep the sensor awake with a periodic clock heartbeat
- Decode captured frames offline

Settings come from an optional YAML file (--config) and SENSORLINK_* environment variables.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("sensorlink {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(negotiateCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(tokenCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides log_level from config")
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
