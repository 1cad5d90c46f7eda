// Package logging builds the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/naka-gawa/gitdash/internal/config"
)

const appName = "gitdash"

// New creates a logger writing to w at the configured level and format.
// verbose forces the debug level.
func New(w io.Writer, cfg config.LogConfig, verbose bool) (*log.Logger, error) {
	if w == nil {
		w = io.Discard
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	if strings.EqualFold(cfg.Format, "json") {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	}), nil
}
