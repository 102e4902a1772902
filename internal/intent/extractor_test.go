package intent

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/schema"
)

func testExtractor(generate GenerateFunc) *Extractor {
	return NewExtractor(generate, slog.New(slog.DiscardHandler))
}

func keywordConfig() *schema.ExtractIntentsConfig {
	return &schema.ExtractIntentsConfig{
		Method: schema.ExtractMethodKeywords,
		Intents: []schema.IntentDefinition{
			{Name: "reminder", Synonyms: []string{"remind me", "don't forget"}, Enabled: true, TargetWorkflowID: "wf-reminder"},
			{Name: "email", Synonyms: []string{"send an email"}, Enabled: true},
			{Name: "disabled", Synonyms: []string{"remind me"}, Enabled: false},
		},
	}
}

func TestExtractKeywords(t *testing.T) {
	e := testExtractor(nil)

	intents, err := e.Extract(context.Background(), "Remind me to buy milk tomorrow", keywordConfig())
	require.NoError(t, err)

	require.Len(t, intents, 1)
	assert.Equal(t, "reminder", intents[0].Action)
	assert.Equal(t, "tomorrow", intents[0].Parameter)
	assert.Equal(t, KeywordConfidence, intents[0].Confidence)
	assert.Equal(t, "wf-reminder", intents[0].TargetWorkflowID)
}

func TestExtractKeywordsMultipleMatches(t *testing.T) {
	e := testExtractor(nil)

	intents, err := e.Extract(context.Background(),
		"remind me to send an email to the team", keywordConfig())
	require.NoError(t, err)

	require.Len(t, intents, 2)
	assert.Equal(t, "reminder", intents[0].Action)
	assert.Equal(t, "email", intents[1].Action)
}

func TestExtractKeywordsNoMatch(t *testing.T) {
	e := testExtractor(nil)

	intents, err := e.Extract(context.Background(), "just some thoughts about the weather", keywordConfig())
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestExtractEmptyMethodDefaultsToKeywords(t *testing.T) {
	e := testExtractor(nil)
	cfg := keywordConfig()
	cfg.Method = ""

	intents, err := e.Extract(context.Background(), "remind me later", cfg)
	require.NoError(t, err)
	require.Len(t, intents, 1)
}

func TestExtractUnknownMethod(t *testing.T) {
	e := testExtractor(nil)
	cfg := keywordConfig()
	cfg.Method = "psychic"

	_, err := e.Extract(context.Background(), "anything", cfg)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestExtractLLM(t *testing.T) {
	var prompt string
	e := testExtractor(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "ACTION: reminder | PARAM: tomorrow | CONFIDENCE: 0.9", nil
	})
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodLLM

	intents, err := e.Extract(context.Background(), "remind me tomorrow", cfg)
	require.NoError(t, err)

	require.Len(t, intents, 1)
	assert.Equal(t, "reminder", intents[0].Action)
	assert.InDelta(t, 0.9, intents[0].Confidence, 1e-9)
	assert.Equal(t, "wf-reminder", intents[0].TargetWorkflowID) // attached from the definition

	// The default template lists enabled intents and embeds the input.
	assert.Contains(t, prompt, "reminder, email")
	assert.NotContains(t, prompt, "disabled")
	assert.Contains(t, prompt, "remind me tomorrow")
}

func TestExtractLLMNoGenerator(t *testing.T) {
	e := testExtractor(nil)
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodLLM

	_, err := e.Extract(context.Background(), "anything", cfg)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProviderUnavailable))
}

func TestExtractLLMGeneratorError(t *testing.T) {
	e := testExtractor(func(context.Context, string) (string, error) {
		return "", schema.NewError(schema.ErrCodeTimeout, "generate timed out")
	})
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodLLM

	_, err := e.Extract(context.Background(), "anything", cfg)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProviderUnavailable))
}

func TestExtractHybridFallsBackToKeywords(t *testing.T) {
	e := testExtractor(func(context.Context, string) (string, error) {
		return "", schema.NewError(schema.ErrCodeTimeout, "generate timed out")
	})
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodHybrid

	intents, err := e.Extract(context.Background(), "remind me to call mom", cfg)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, KeywordConfidence, intents[0].Confidence)
}

func TestExtractHybridPrefersLLMResults(t *testing.T) {
	e := testExtractor(func(context.Context, string) (string, error) {
		return "ACTION: email | CONFIDENCE: 0.95", nil
	})
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodHybrid

	intents, err := e.Extract(context.Background(), "remind me to call mom", cfg)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "email", intents[0].Action)
}

func TestExtractConfidenceThreshold(t *testing.T) {
	e := testExtractor(func(context.Context, string) (string, error) {
		return "ACTION: reminder | CONFIDENCE: 0.4\nACTION: email | CONFIDENCE: 0.8", nil
	})
	cfg := keywordConfig()
	cfg.Method = schema.ExtractMethodLLM

	// Default threshold 0.5 drops the low scorer.
	intents, err := e.Extract(context.Background(), "text", cfg)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, "email", intents[0].Action)

	cfg.ConfidenceThreshold = 0.9
	intents, err = e.Extract(context.Background(), "text", cfg)
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestExtractTimeParameter(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"remind me tomorrow morning", "tomorrow morning"},
		{"remind me tomorrow", "tomorrow"},
		{"do it tonight", "tonight"},
		{"in 30 minutes please", "in 30 minutes"},
		{"in 2 weeks", "in 2 weeks"},
		{"no time mentioned", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractTimeParameter(tt.input), tt.input)
	}
}
