// Package ui provides terminal output helpers for the CLI.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	keyColor     = color.New(color.FgHiBlack)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// Init configures color output.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects normal and error output.
func SetOutput(stdout, stderr io.Writer) {
	out, errOut = stdout, stderr
}

// Section prints a colored section header.
func Section(title string) {
	fmt.Fprintln(out)
	headerColor.Fprintln(out, title)
	fmt.Fprintln(out, strings.Repeat("=", len(title)))
}

// KeyValue prints one aligned key/value line.
func KeyValue(key, value string) {
	fmt.Fprintf(out, "  %s %s\n", keyColor.Sprintf("%-14s", key+":"), value)
}

// List prints numbered items.
func List(items []string) {
	for i, item := range items {
		fmt.Fprintf(out, "  %2d. %s\n", i+1, item)
	}
}

// Text prints a block of text unchanged.
func Text(s string) {
	fmt.Fprintln(out, s)
}

// Success prints a success message.
func Success(format string, args ...interface{}) {
	successColor.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	warnColor.Fprintf(out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message to stderr.
func Error(format string, args ...interface{}) {
	errorColor.Fprintf(errOut, "✗ %s\n", fmt.Sprintf(format, args...))
}

// JSON prints v as indented JSON.
func JSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PathColor returns the label colored by recommendation path.
func PathColor(path string) string {
	switch path {
	case "CATALOG":
		return color.GreenString(path)
	case "HYBRID":
		return color.CyanString(path)
	case "TEMPORAL":
		return color.MagentaString(path)
	default:
		return color.YellowString(path)
	}
}

// Spinner shows indeterminate progress on stderr.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = errOut
	return &Spinner{s: s}
}

// Start starts the animation.
func (s *Spinner) Start() { s.s.Start() }

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() { s.s.Stop() }

// ProgressBar shows determinate progress on stderr.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a bar over total items.
func NewProgressBar(total int, description string) *ProgressBar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("books"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(errOut) }),
	)
	return &ProgressBar{bar: bar}
}

// Add advances the bar by n.
func (p *ProgressBar) Add(n int) {
	_ = p.bar.Add(n)
}

// Finish completes the bar.
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}
