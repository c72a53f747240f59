package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

func TestShouldUseColor(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColorWins", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Forced", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
				t.Setenv(k, tc.env[k])
			}
			if got := ShouldUseColor(os.Stdout); got != tc.want {
				t.Errorf("ShouldUseColor = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldUseColor_NotATerminal(t *testing.T) {
	for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
		t.Setenv(k, "")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if ShouldUseColor(f) {
		t.Error("regular file reported as color-capable")
	}
	if w := TerminalWidth(f, 80); w != 80 {
		t.Errorf("TerminalWidth = %d, want fallback 80", w)
	}
}

func TestRender(t *testing.T) {
	SetColor(true)
	defer SetColor(false)

	if got := RenderOK("ok"); !strings.HasPrefix(got, "\x1b[38;5;") || !strings.Contains(got, "ok") {
		t.Errorf("RenderOK = %q", got)
	}
	if got := RenderKind(model.KindAudio); !strings.Contains(got, "audio   ") {
		t.Errorf("RenderKind = %q", got)
	}

	ForceNoColor()
	if got := RenderKind(model.KindText); got != "text    " {
		t.Errorf("RenderKind without color = %q", got)
	}
	if got := RenderMode(model.ModeDebug); got != "debug" {
		t.Errorf("RenderMode = %q", got)
	}
}
