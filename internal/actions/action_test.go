package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

type stubAction struct {
	stepType schema.StepType
}

func (a *stubAction) Type() schema.StepType { return a.stepType }
func (a *stubAction) Execute(context.Context, Input) (string, error) {
	return "", nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&stubAction{stepType: schema.StepNotify}))
	require.NoError(t, reg.Register(&stubAction{stepType: schema.StepClipboard}))

	assert.True(t, reg.Has(schema.StepNotify))
	assert.False(t, reg.Has(schema.StepSendEmail))

	act, err := reg.Get(schema.StepNotify)
	require.NoError(t, err)
	assert.Equal(t, schema.StepNotify, act.Type())

	_, err = reg.Get(schema.StepSendEmail)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	assert.Equal(t, []schema.StepType{schema.StepClipboard, schema.StepNotify}, reg.Types())
}

func TestRegistryRejects(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	err = reg.Register(&stubAction{stepType: "teleport"})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	require.NoError(t, reg.Register(&stubAction{stepType: schema.StepNotify}))
	err = reg.Register(&stubAction{stepType: schema.StepNotify})
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
}

// recordingGenerator captures the request and returns canned output.
type recordingGenerator struct {
	req GenerateRequest
	out string
	err error
}

func (g *recordingGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.req = req
	return g.out, g.err
}

func actionContext() *expressions.Context {
	return expressions.NewContext("voice note text", "Errands", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
}

func TestGenerateText(t *testing.T) {
	gen := &recordingGenerator{out: "a tidy summary"}
	act := NewGenerateText(gen)

	out, err := act.Execute(context.Background(), Input{
		Config:     &schema.GenerateTextConfig{Prompt: "Summarize: {{TRANSCRIPT}}", Model: "claude-sonnet-4-5"},
		RunContext: actionContext(),
	})
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", out)
	assert.Equal(t, "Summarize: voice note text", gen.req.Prompt)
	assert.Equal(t, "claude-sonnet-4-5", gen.req.Model)
}

func TestGenerateTextNoProvider(t *testing.T) {
	act := NewGenerateText(nil)

	_, err := act.Execute(context.Background(), Input{
		Config:     &schema.GenerateTextConfig{Prompt: "hi"},
		RunContext: actionContext(),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProviderUnavailable))
}

func TestGenerateTextProviderFailure(t *testing.T) {
	act := NewGenerateText(&recordingGenerator{err: errors.New("rate limited")})

	_, err := act.Execute(context.Background(), Input{
		Config:     &schema.GenerateTextConfig{Prompt: "hi"},
		RunContext: actionContext(),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProviderUnavailable))
}

type memNotifier struct {
	title, message string
}

func (n *memNotifier) Notify(_ context.Context, title, message string) error {
	n.title, n.message = title, message
	return nil
}

func TestNotify(t *testing.T) {
	sink := &memNotifier{}
	act := NewNotify(sink)

	out, err := act.Execute(context.Background(), Input{
		Config:     &schema.NotifyConfig{Title: "{{TITLE}}", Message: "{{TRANSCRIPT}}"},
		RunContext: actionContext(),
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Errands")
	assert.Equal(t, "Errands", sink.title)
	assert.Equal(t, "voice note text", sink.message)
}

func TestNotifyNoSink(t *testing.T) {
	_, err := NewNotify(nil).Execute(context.Background(), Input{
		Config:     &schema.NotifyConfig{Message: "x"},
		RunContext: actionContext(),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProviderUnavailable))
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	act := NewSaveFile(nil)

	out, err := act.Execute(context.Background(), Input{
		Config: &schema.SaveFileConfig{
			Directory: dir,
			Filename:  "{{TITLE}}.md",
			Content:   "# {{TITLE}}\n\n{{TRANSCRIPT}}\n",
		},
		RunContext: actionContext(),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Errands.md"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# Errands\n\nvoice note text\n", string(data))
}

func TestSaveFileAppend(t *testing.T) {
	dir := t.TempDir()
	act := NewSaveFile(nil)
	cfg := &schema.SaveFileConfig{Directory: dir, Filename: "log.txt", Content: "line\n", Append: true}

	for range 2 {
		_, err := act.Execute(context.Background(), Input{Config: cfg, RunContext: actionContext()})
		require.NoError(t, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line\nline\n", string(data))
}

func TestSaveFileAlias(t *testing.T) {
	dir := t.TempDir()
	act := NewSaveFile(map[string]string{"notes": dir})

	out, err := act.Execute(context.Background(), Input{
		Config:     &schema.SaveFileConfig{Directory: "notes", Filename: "memo.txt", Content: "x"},
		RunContext: actionContext(),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "memo.txt"), out)
}

func TestSaveFileMissingFields(t *testing.T) {
	act := NewSaveFile(nil)

	_, err := act.Execute(context.Background(), Input{
		Config:     &schema.SaveFileConfig{Directory: "", Filename: "x"},
		RunContext: actionContext(),
	})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}
