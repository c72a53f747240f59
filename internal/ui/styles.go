// Package ui renders CLI output for rmk.
package ui

import (
	"fmt"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorFail   = 203 // red
	colorWarn   = 215 // orange
)

var kindColors = map[model.BlockKind]int{
	model.KindText:     250,
	model.KindImage:    141,
	model.KindVideo:    176,
	model.KindAudio:    179,
	model.KindDocument: 109,
}

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderOK returns s in green.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderFail returns s in red.
func RenderFail(s string) string { return paint(colorFail, s) }

// RenderKind returns the block kind padded to a fixed width and colored per kind.
func RenderKind(k model.BlockKind) string {
	label := fmt.Sprintf("%-8s", k)
	code, ok := kindColors[k]
	if !ok {
		code = colorFail
	}
	return paint(code, label)
}

// RenderMode marks debug blocks, which go only to the operating bot.
func RenderMode(m model.Mode) string {
	if m == model.ModeDebug {
		return paint(colorWarn, "debug")
	}
	return RenderMuted(string(m))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(on bool) {
	noColor = !on
}
