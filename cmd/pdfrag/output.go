package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorBold  = "\033[1m"
)

// noColor is set by --no-color.
var noColor bool

// output writes human-facing lines for one command. Colour is used only
// when the writer is a terminal, NO_COLOR is unset and --no-color was not
// given.
type output struct {
	w     io.Writer
	color bool
}

func newOutput(w io.Writer) output {
	return output{w: w, color: colorEnabled(w)}
}

func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func (o output) paint(color, text string) string {
	if !o.color {
		return text
	}
	return color + text + colorReset
}

// success reports a finished command, e.g. a stored document.
func (o output) success(format string, args ...any) {
	fmt.Fprintln(o.w, o.paint(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

// fail reports the error that ended the command.
func (o output) fail(format string, args ...any) {
	fmt.Fprintln(o.w, o.paint(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

// field prints one "label: value" line of index or document details.
func (o output) field(label string, format string, args ...any) {
	fmt.Fprintf(o.w, "  %s %s\n", o.paint(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func (o output) step(format string, args ...any) {
	fmt.Fprintln(o.w, o.paint(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}
