// Package logging configures the process-wide logrus logger the way the
// teacher project's internal/logging package does: a text or JSON
// formatter chosen by config, a level parsed from config/env, and
// optional rotation to a file through lumberjack.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger setup.
type Options struct {
	Level      string // debug, info, warn, error
	JSON       bool
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup installs the configured formatter, level, and output on the
// package-level logrus logger. Safe to call once at startup.
func Setup(opts Options) {
	if opts.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	var out io.Writer = os.Stdout
	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    firstPositive(opts.MaxSizeMB, 50),
			MaxBackups: firstPositive(opts.MaxBackups, 5),
			MaxAge:     firstPositive(opts.MaxAgeDays, 14),
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
