package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sensorlink/pkg/config"
)

// configureLogger creates a logger with the level taken from --log-level, then
// --verbose, then log_level from the loaded config. Log lines go to the
// command's stderr so stdout carries readings only.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	var logger *logrus.Logger

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	switch {
	case logLevelStr != "":
		level, err := parseLogLevel(logLevelStr)
		if err != nil {
			return nil, err
		}
		logger = logrus.New()
		logger.SetLevel(level)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case verbose:
		logger = cfg.NewLogger()
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger = cfg.NewLogger()
	}

	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}

func parseLogLevel(s string) (logrus.Level, error) {
	switch s {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.PanicLevel, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// loadConfig reads --config and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// setup loads the config and builds the logger for a command.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
