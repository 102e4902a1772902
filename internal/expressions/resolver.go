package expressions

import "strings"

// Template placeholders recognized by Resolve. Anything else wrapped in
// {{...}} is left as literal text.
const (
	PlaceholderTranscript     = "{{TRANSCRIPT}}"
	PlaceholderTitle          = "{{TITLE}}"
	PlaceholderDate           = "{{DATE}}"
	PlaceholderDateTime       = "{{DATETIME}}"
	PlaceholderPreviousOutput = "{{PREVIOUS_OUTPUT}}"
	PlaceholderLastOutput     = "{{LAST_OUTPUT}}"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Resolve substitutes placeholders in template from the run context.
// Substitution order is deterministic: source text, sanitized title,
// date, date-time, each output key in insertion order, then the
// previous-output alias resolved from the most recently inserted value.
// Unknown placeholders are left untouched. Pure function of its inputs.
func Resolve(template string, ctx *Context) string {
	if ctx == nil || !strings.Contains(template, "{{") {
		return template
	}

	s := template
	s = strings.ReplaceAll(s, PlaceholderTranscript, ctx.SourceText)
	s = strings.ReplaceAll(s, PlaceholderTitle, SanitizeTitle(ctx.Title))
	s = strings.ReplaceAll(s, PlaceholderDate, ctx.Date.Format(dateLayout))
	s = strings.ReplaceAll(s, PlaceholderDateTime, ctx.Date.Format(dateTimeLayout))

	for _, key := range ctx.Keys() {
		v, _ := ctx.Get(key)
		s = strings.ReplaceAll(s, "{{"+key+"}}", v)
	}

	last := ctx.LastOutput()
	s = strings.ReplaceAll(s, PlaceholderPreviousOutput, last)
	s = strings.ReplaceAll(s, PlaceholderLastOutput, last)
	return s
}

// SanitizeTitle replaces filesystem-unsafe characters in a title with
// dashes so resolved values are safe to use in filenames.
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('-')
		case r < 0x20:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
