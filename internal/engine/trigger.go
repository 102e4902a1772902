package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// DefaultWindowChars bounds the scan window when the step does not set one.
const DefaultWindowChars = 300

// detectTrigger scans the current text for configured phrases. It is a
// pure text scan; the only effect it can have on the run is the
// graceful-stop signal when StopIfNoMatch is set and nothing matched.
func detectTrigger(cfg *schema.DetectTriggerConfig, runCtx *expressions.Context) (string, error) {
	if len(cfg.Phrases) == 0 {
		return "", schema.NewError(schema.ErrCodeValidation, "detect-trigger: no phrases configured")
	}

	text := runCtx.LastOutput()
	window := triggerWindow(text, cfg.Window, cfg.WindowChars)
	lowered := strings.ToLower(window)

	for _, phrase := range cfg.Phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		if idx := strings.Index(lowered, p); idx >= 0 {
			return fmt.Sprintf("trigger matched: %q at offset %d", strings.TrimSpace(phrase), idx), nil
		}
	}

	if cfg.StopIfNoMatch {
		return "", schema.NewGracefulStop("no trigger phrase matched")
	}
	return "no trigger matched", nil
}

// triggerWindow slices the scan region out of the text. Windows are
// measured in runes so the cut never splits a multibyte character; an
// oversized or unset window falls back to the whole text.
func triggerWindow(text, window string, chars int) string {
	if chars <= 0 {
		chars = DefaultWindowChars
	}
	switch window {
	case "start":
		return headRunes(text, chars)
	case "end":
		return tailRunes(text, chars)
	default: // anywhere
		return text
	}
}

// headRunes returns the first n runes of s.
func headRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	end := len(s)
	for n > 0 && end > 0 {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
		n--
	}
	return s[end:]
}
