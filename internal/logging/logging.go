package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"

	"shareofsearch/internal/config"
)

// Setup replaces the package-level phuslu logger. Output goes to stderr so
// stdout stays free for tables.
func Setup(cfg config.LogConfig, verbose bool) {
	SetupWriter(os.Stderr, cfg, verbose)
}

func SetupWriter(w io.Writer, cfg config.LogConfig, verbose bool) {
	level := log.ParseLevel(strings.ToLower(cfg.Level))
	if verbose {
		level = log.DebugLevel
	}

	logger := log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
	}
	if strings.EqualFold(cfg.Format, "json") {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: w, ColorOutput: false, QuoteString: true}
	}
	log.DefaultLogger = logger
}
