package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/voxflow/voxflow/pkg/schema"
)

// KeywordConfidence is the fixed confidence assigned to keyword matches.
const KeywordConfidence = 0.7

// DefaultConfidenceThreshold filters extractions when the step config
// does not set one.
const DefaultConfidenceThreshold = 0.5

// DefaultPromptTemplate is used for llm extraction when the step config
// does not provide a template.
const DefaultPromptTemplate = `You are an intent classifier for voice notes.
Known intents: {{INTENT_NAMES}}

Analyze the following text and list every matching intent, one per line, as:
ACTION: <intent name> | PARAM: <optional parameter> | CONFIDENCE: <0.0-1.0>

Text:
{{INPUT}}`

// GenerateFunc produces text from a prompt via an external generator.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Extractor classifies free text into named intents using keyword
// matching, an external LLM, or a hybrid of both.
type Extractor struct {
	generate GenerateFunc
	logger   *slog.Logger
}

// NewExtractor creates an Extractor. generate may be nil, in which case
// llm and hybrid extraction degrade to keywords.
func NewExtractor(generate GenerateFunc, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{generate: generate, logger: logger}
}

// Extract runs the configured extraction method over the input and
// filters the results by the confidence threshold. Intents below the
// threshold never appear in the output, regardless of method.
func (e *Extractor) Extract(ctx context.Context, input string, cfg *schema.ExtractIntentsConfig) ([]schema.ExtractedIntent, error) {
	var (
		intents []schema.ExtractedIntent
		err     error
	)

	switch cfg.Method {
	case schema.ExtractMethodLLM:
		intents, err = e.extractLLM(ctx, input, cfg)
		if err != nil {
			return nil, err
		}

	case schema.ExtractMethodHybrid:
		intents, err = e.extractLLM(ctx, input, cfg)
		if err != nil {
			e.logger.Warn("llm extraction failed, falling back to keywords",
				slog.String("error", err.Error()))
			intents = nil
		}
		if len(intents) == 0 {
			intents = e.extractKeywords(input, cfg)
		}

	case schema.ExtractMethodKeywords, "":
		intents = e.extractKeywords(input, cfg)

	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown extraction method %q", cfg.Method)
	}

	threshold := cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}

	filtered := intents[:0]
	for _, in := range intents {
		if in.Confidence >= threshold {
			filtered = append(filtered, in)
		}
	}
	return filtered, nil
}

// extractKeywords matches each enabled intent's name and synonyms as
// substrings of the lower-cased input.
func (e *Extractor) extractKeywords(input string, cfg *schema.ExtractIntentsConfig) []schema.ExtractedIntent {
	lowered := strings.ToLower(input)

	var out []schema.ExtractedIntent
	for _, def := range cfg.Intents {
		if !def.Enabled {
			continue
		}
		if !matchesKeyword(lowered, def) {
			continue
		}
		out = append(out, schema.ExtractedIntent{
			Action:           def.Name,
			Parameter:        extractTimeParameter(lowered),
			Confidence:       KeywordConfidence,
			TargetWorkflowID: def.TargetWorkflowID,
		})
	}
	return out
}

func matchesKeyword(lowered string, def schema.IntentDefinition) bool {
	if name := strings.ToLower(def.Name); name != "" && strings.Contains(lowered, name) {
		return true
	}
	for _, syn := range def.Synonyms {
		if s := strings.ToLower(syn); s != "" && strings.Contains(lowered, s) {
			return true
		}
	}
	return false
}

// relativeTimePhrases is the fixed vocabulary checked before the
// "in N units" pattern.
var relativeTimePhrases = []string{
	"tomorrow morning",
	"tomorrow evening",
	"tomorrow",
	"tonight",
	"this afternoon",
	"this evening",
	"this weekend",
	"next week",
	"next month",
	"today",
}

var inDurationRe = regexp.MustCompile(`in (\d+) (day|hour|minute|week)s?`)

// extractTimeParameter pulls an optional relative-time parameter out of
// the lower-cased input.
func extractTimeParameter(lowered string) string {
	for _, phrase := range relativeTimePhrases {
		if strings.Contains(lowered, phrase) {
			return phrase
		}
	}
	if m := inDurationRe.FindString(lowered); m != "" {
		return m
	}
	return ""
}

// extractLLM builds the prompt from the configured template and parses
// the generator response into intents.
func (e *Extractor) extractLLM(ctx context.Context, input string, cfg *schema.ExtractIntentsConfig) ([]schema.ExtractedIntent, error) {
	if e.generate == nil {
		return nil, schema.NewError(schema.ErrCodeProviderUnavailable,
			"llm extraction requested but no generator configured")
	}

	template := cfg.PromptTemplate
	if template == "" {
		template = DefaultPromptTemplate
	}

	var names []string
	for _, def := range cfg.Intents {
		if def.Enabled {
			names = append(names, def.Name)
		}
	}

	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{INPUT}}", input)
	prompt = strings.ReplaceAll(prompt, "{{TRANSCRIPT}}", input)
	prompt = strings.ReplaceAll(prompt, "{{INTENT_NAMES}}", strings.Join(names, ", "))

	response, err := e.generate(ctx, prompt)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeProviderUnavailable,
			"intent extraction generate: %s", err.Error()).WithCause(err)
	}

	intents := ParseResponse(response)

	// Attach explicit target workflows from the matching definitions.
	byName := make(map[string]schema.IntentDefinition, len(cfg.Intents))
	for _, def := range cfg.Intents {
		byName[strings.ToLower(def.Name)] = def
	}
	for i := range intents {
		if def, ok := byName[strings.ToLower(intents[i].Action)]; ok {
			intents[i].TargetWorkflowID = def.TargetWorkflowID
		}
	}
	return intents, nil
}
