package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	gray   = "\033[90m"
	bold   = "\033[1m"
)

// colorEnabled is resolved once; NO_COLOR disables colors even on a terminal.
var colorEnabled = os.Getenv("NO_COLOR") == "" &&
	(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

func paint(color, s string) string {
	if !colorEnabled {
		return s
	}
	return color + s + reset
}

func line(color, level, tag, msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		paint(gray, ts),
		paint(color, fmt.Sprintf("%-4s", level)),
		paint(bold, fmt.Sprintf("[%s]", tag)),
		msg,
	)
}

// Info prints a neutral status line.
func Info(tag, msg string) { line(blue, "INFO", tag, msg) }

// Success prints a completed-step line.
func Success(tag, msg string) { line(green, "OK", tag, msg) }

// Warn prints a recoverable problem (skipped batch, malformed record).
func Warn(tag, msg string) { line(yellow, "WARN", tag, msg) }

// Error prints a failure that aborted an operation.
func Error(tag, msg string) { line(red, "ERR", tag, msg) }

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	title := fmt.Sprintf("  Albion Market Tools  %s  ", version)
	border := strings.Repeat("=", len(title))
	fmt.Fprintln(os.Stdout, paint(cyan, border))
	fmt.Fprintln(os.Stdout, paint(bold+cyan, title))
	fmt.Fprintln(os.Stdout, paint(cyan, border))
}

// Section prints a section header.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n%s\n", paint(bold, "── "+title+" ──"))
}

// Stats prints a key/value pair. Integer values are printed with thousands separators.
func Stats(key string, value interface{}) {
	var v string
	switch n := value.(type) {
	case int:
		v = humanize.Comma(int64(n))
	case int64:
		v = humanize.Comma(n)
	case float64:
		v = humanize.Commaf(n)
	default:
		v = fmt.Sprint(value)
	}
	fmt.Fprintf(os.Stdout, "  %-24s %s\n", key+":", paint(bold, v))
}

// Server prints the listening address.
func Server(addr string) {
	Success("HTTP", fmt.Sprintf("Listening on http://%s", addr))
}
