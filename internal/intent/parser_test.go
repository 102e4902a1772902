package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	response := `ACTION: reminder | PARAM: tomorrow | CONFIDENCE: 0.9
ACTION: email | PARAM: none | CONFIDENCE: 0.75`

	intents := ParseResponse(response)
	require.Len(t, intents, 2)

	assert.Equal(t, "reminder", intents[0].Action)
	assert.Equal(t, "tomorrow", intents[0].Parameter)
	assert.InDelta(t, 0.9, intents[0].Confidence, 1e-9)

	assert.Equal(t, "email", intents[1].Action)
	assert.Empty(t, intents[1].Parameter) // "none" means no parameter
	assert.InDelta(t, 0.75, intents[1].Confidence, 1e-9)
}

func TestParseResponseDefaultsConfidence(t *testing.T) {
	intents := ParseResponse("ACTION: reminder")
	require.Len(t, intents, 1)
	assert.Equal(t, DefaultLLMConfidence, intents[0].Confidence)
}

func TestParseResponseClampsConfidence(t *testing.T) {
	intents := ParseResponse("ACTION: a | CONFIDENCE: 1.7\nACTION: b | CONFIDENCE: -0.3")
	require.Len(t, intents, 2)
	assert.Equal(t, 1.0, intents[0].Confidence)
	assert.Equal(t, 0.0, intents[1].Confidence)
}

func TestParseResponseIgnoresNoise(t *testing.T) {
	response := `Here are the intents I found:

action: reminder | confidence: 0.8
Some trailing commentary without fields.`

	intents := ParseResponse(response)
	require.Len(t, intents, 1)
	assert.Equal(t, "reminder", intents[0].Action)
	assert.InDelta(t, 0.8, intents[0].Confidence, 1e-9)
}

func TestParseResponseBadConfidenceKeepsDefault(t *testing.T) {
	intents := ParseResponse("ACTION: reminder | CONFIDENCE: high")
	require.Len(t, intents, 1)
	assert.Equal(t, DefaultLLMConfidence, intents[0].Confidence)
}

func TestParseResponseEmpty(t *testing.T) {
	assert.Empty(t, ParseResponse(""))
	assert.Empty(t, ParseResponse("no structured content at all"))
}
