// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package logging sets up the process-wide logger. Library code logs through
// the standard library's log package with "[LEVEL]" prefixes, or through an
// injected hclog.Logger; both end up in the logger returned by [HCLogger].
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLog selects the log level. Logging is off unless it is set.
	EnvLog = "LAZYTREE_LOG"

	// EnvLogFile names a file that log output is appended to instead of
	// being written to stderr.
	EnvLogFile = "LAZYTREE_LOG_PATH"
)

// ValidLevels are the level names accepted in [EnvLog], from most to least
// verbose.
var ValidLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "OFF"}

var (
	logger hclog.InterceptLogger

	// logWriter is the writer the standard library logger was redirected
	// to, kept so that it is only built once.
	logWriter io.Writer

	initOnce sync.Once
)

func setup() {
	initOnce.Do(func() {
		logger = newHCLogger("lazytree")
		logWriter = logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true})

		// Everything in the process that logs through the standard library
		// log package is routed through the hclog logger, which understands
		// the bracketed level prefixes.
		log.SetFlags(0)
		log.SetPrefix("")
		log.SetOutput(logWriter)
	})
}

// HCLogger returns the process-wide logger.
func HCLogger() hclog.Logger {
	setup()
	return logger
}

// RegisterSink adds a writer that receives every log line regardless of the
// configured level.
func RegisterSink(w io.Writer) {
	setup()
	logger.RegisterSink(hclog.NewSinkAdapter(&hclog.LoggerOptions{
		Level:  hclog.Trace,
		Output: w,
	}))
}

// IsDebugOrHigher returns true if the configured level is DEBUG or TRACE.
func IsDebugOrHigher() bool {
	level := CurrentLevel()
	return level == "DEBUG" || level == "TRACE"
}

// CurrentLevel returns the normalized level name from [EnvLog], or "" if
// logging is off.
func CurrentLevel() string {
	level, _ := parseLevel(os.Getenv(EnvLog))
	return level
}

func newHCLogger(name string) hclog.InterceptLogger {
	logOutput := io.Writer(os.Stderr)
	if path := os.Getenv(EnvLogFile); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		} else {
			logOutput = f
		}
	}

	level, unknown := parseLevel(os.Getenv(EnvLog))
	if unknown != "" {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid log level: %q. Defaulting to level: TRACE. Valid levels are: %+v\n", unknown, ValidLevels)
	}
	hcLevel := hclog.Off
	if level != "" {
		hcLevel = hclog.LevelFromString(level)
	}

	return hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:              name,
		Level:             hcLevel,
		Output:            logOutput,
		IndependentLevels: true,
	})
}

// parseLevel returns the normalized level for raw. An unknown level turns
// on tracing and is returned as the second result.
func parseLevel(raw string) (level, unknown string) {
	if raw == "" {
		return "", ""
	}
	level = strings.ToUpper(strings.TrimSpace(raw))
	switch level {
	case "OFF":
		return "", ""
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR":
		return level, ""
	default:
		return "TRACE", raw
	}
}
