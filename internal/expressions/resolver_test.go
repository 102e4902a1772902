package expressions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testContext() *Context {
	return NewContext(
		"buy milk and call the dentist",
		"Morning note",
		time.Date(2026, 3, 10, 8, 30, 15, 0, time.UTC),
	)
}

func TestResolvePlaceholders(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"transcript", "Summarize: {{TRANSCRIPT}}", "Summarize: buy milk and call the dentist"},
		{"title", "{{TITLE}}.md", "Morning note.md"},
		{"date", "notes/{{DATE}}", "notes/2026-03-10"},
		{"datetime", "at {{DATETIME}}", "at 2026-03-10 08:30:15"},
		{"unknown left alone", "keep {{MYSTERY}} here", "keep {{MYSTERY}} here"},
		{"no placeholders", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.template, ctx))
		})
	}
}

func TestResolveNilContext(t *testing.T) {
	assert.Equal(t, "{{TRANSCRIPT}}", Resolve("{{TRANSCRIPT}}", nil))
}

func TestResolveOutputKeys(t *testing.T) {
	ctx := testContext()
	ctx.Set("summary", "a short summary")
	ctx.Set("tasks", "milk, dentist")

	assert.Equal(t, "a short summary / milk, dentist",
		Resolve("{{summary}} / {{tasks}}", ctx))
}

func TestResolvePreviousOutput(t *testing.T) {
	ctx := testContext()

	// Before any step output, the alias falls back to the source text.
	assert.Equal(t, "buy milk and call the dentist", Resolve("{{PREVIOUS_OUTPUT}}", ctx))

	ctx.Set("summary", "first")
	ctx.Set("refined", "second")
	assert.Equal(t, "second", Resolve("{{PREVIOUS_OUTPUT}}", ctx))
	assert.Equal(t, "second", Resolve("{{LAST_OUTPUT}}", ctx))

	// Overwriting a key makes it the most recent again.
	ctx.Set("summary", "third")
	assert.Equal(t, "third", Resolve("{{PREVIOUS_OUTPUT}}", ctx))
}

func TestResolveTitleSanitized(t *testing.T) {
	ctx := testContext()
	ctx.Title = `a/b\c:d*e?f"g<h>i|j`

	assert.Equal(t, "a-b-c-d-e-f-g-h-i-j.md", Resolve("{{TITLE}}.md", ctx))
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "plain title", SanitizeTitle("plain title"))
	assert.Equal(t, "tab-and-newline-", SanitizeTitle("tab\tand\nnewline\x00"))
}

func TestContextCloneIsIndependent(t *testing.T) {
	ctx := testContext()
	ctx.Set("summary", "original")

	cp := ctx.Clone()
	cp.Set("summary", "changed")
	cp.Set("extra", "new")

	got, _ := ctx.Get("summary")
	assert.Equal(t, "original", got)
	assert.Equal(t, 1, ctx.Len())
	assert.Equal(t, 2, cp.Len())
}

func TestContextOutputs(t *testing.T) {
	ctx := testContext()
	ctx.Set("a", "1")
	ctx.Set("b", "2")

	out := ctx.Outputs()
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, out)

	out["a"] = "mutated"
	got, _ := ctx.Get("a")
	assert.Equal(t, "1", got)
}
