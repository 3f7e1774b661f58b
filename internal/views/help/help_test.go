package help

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	out := Render(80)
	for _, want := range []string{"signal-tui", "quit", "pause"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
}
