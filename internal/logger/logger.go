package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

var log = newLogger(os.Stdout)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "15:04:05",
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	return l
}

// SetOutput redirects all log output (banner and sections included).
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetQuiet suppresses everything below warnings.
func SetQuiet(quiet bool) {
	if quiet {
		log.SetLevel(logrus.WarnLevel)
		return
	}
	log.SetLevel(logrus.InfoLevel)
}

// Info logs a regular progress message under a tag such as "DB" or "Import".
func Info(tag, msg string) {
	log.WithField("tag", tag).Info(msg)
}

// Success logs a completed step.
func Success(tag, msg string) {
	log.WithFields(logrus.Fields{"tag": tag, "ok": true}).Info(msg)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	log.WithField("tag", tag).Warn(msg)
}

// Error logs a failure. Callers decide whether it is fatal.
func Error(tag, msg string) {
	log.WithField("tag", tag).Error(msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if !log.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	if version == "" {
		version = "dev"
	}
	w := log.Out
	fmt.Fprintf(w, "%s%s  EDRG - rare goods route planner%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "  version %s\n\n", version)
}

// Section prints a section header for grouped output.
func Section(title string) {
	if !log.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	fmt.Fprintf(log.Out, "\n%s%s%s\n%s\n", colorBold, title, colorReset, strings.Repeat("-", len(title)))
}

// Stats prints a single aligned key/value line.
func Stats(key string, value interface{}) {
	if !log.IsLevelEnabled(logrus.InfoLevel) {
		return
	}
	fmt.Fprintf(log.Out, "  %s%-20s%s %v\n", colorYellow, key, colorReset, value)
}

// Route prints one ranked route line.
func Route(rank int, line string) {
	fmt.Fprintf(log.Out, "%s%3d.%s %s\n", colorGreen, rank, colorReset, line)
}
