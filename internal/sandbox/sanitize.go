package sandbox

import (
	"regexp"
	"strings"
)

// MaxContentLength caps resolved content placed into arguments or stdin.
const MaxContentLength = 500_000

// SanitizeContent strips null bytes and truncates to MaxContentLength
// characters. Applied to every resolved value before it reaches a
// subprocess argument or stdin. The cut falls on a rune boundary so
// truncated content stays valid UTF-8.
func SanitizeContent(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	remaining := MaxContentLength
	for i := range s {
		if remaining == 0 {
			return s[:i]
		}
		remaining--
	}
	return s
}

// injectionPattern pairs a detection pattern with a human-readable label.
type injectionPattern struct {
	re    *regexp.Regexp
	label string
}

// The threat model trusts the operator but not the content flowing
// through templates. Arguments are passed as a literal argv array with
// no shell expansion, so these scans produce advisory warnings only and
// never block execution.
var injectionPatterns = []injectionPattern{
	{regexp.MustCompile(`\$\(`), "command substitution $( )"},
	{regexp.MustCompile("`"), "backtick command substitution"},
	{regexp.MustCompile(`&&`), "command chaining &&"},
	{regexp.MustCompile(`\|\|`), "command chaining ||"},
	{regexp.MustCompile(`\|`), "pipe"},
	{regexp.MustCompile(`[<>]`), "redirection"},
	{regexp.MustCompile(`;`), "command separator"},
	{regexp.MustCompile(`^#!`), "shebang"},
	{regexp.MustCompile(`\beval\b`), "eval call"},
	{regexp.MustCompile(`\bexec\b`), "exec call"},
	{regexp.MustCompile(`\bimport\s+os\b`), "python os import"},
	{regexp.MustCompile(`\bsubprocess\b`), "python subprocess"},
	{regexp.MustCompile(`\bos\.system\b`), "os.system call"},
}

// DetectInjectionAttempts scans content for shell metacharacter and
// code-execution patterns, returning one warning per match.
func DetectInjectionAttempts(s string) []string {
	var warnings []string
	for _, p := range injectionPatterns {
		if p.re.MatchString(s) {
			warnings = append(warnings, "suspicious pattern: "+p.label)
		}
	}
	return warnings
}
