// Package log builds Sentinel's structured logger, adapted from the
// teacher's pkg/log/log.go: same debug/production split and JSON
// formatter, pointed at Sentinel's own state directory and config fields
// instead of lazydocker's.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/config"
)

// NewLogger returns a logger entry stamped with build metadata. In debug
// mode (cfg.Debug or DEBUG=TRUE) it writes JSON lines to sentinel.log
// inside the state directory; otherwise its level is set to error and its
// output goes to io.Discard, so nothing is written at all.
func NewLogger(cfg *config.Config) *logrus.Entry {
	var logger *logrus.Logger
	if cfg.Debug {
		logger = newDevelopmentLogger(cfg)
	} else {
		logger = newProductionLogger()
	}

	logger.Formatter = &logrus.JSONFormatter{}

	return logger.WithFields(logrus.Fields{
		"debug":     cfg.Debug,
		"version":   cfg.Version,
		"commit":    cfg.Commit,
		"buildDate": cfg.BuildDate,
	})
}

func getLogLevel() logrus.Level {
	strLevel := os.Getenv("LOG_LEVEL")
	level, err := logrus.ParseLevel(strLevel)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(getLogLevel())
	file, err := os.OpenFile(filepath.Join(cfg.StateDir, "sentinel.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Println("unable to log to file")
		os.Exit(1)
	}
	logger.SetOutput(file)
	return logger
}

func newProductionLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}
