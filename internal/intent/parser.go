package intent

import (
	"strconv"
	"strings"

	"github.com/voxflow/voxflow/pkg/schema"
)

// DefaultLLMConfidence is assumed when a response line omits CONFIDENCE.
const DefaultLLMConfidence = 0.85

// ParseResponse parses a generator response line by line for
// `ACTION: x | PARAM: y | CONFIDENCE: z` records. Lines that do not
// carry an ACTION field are ignored; out-of-range confidences are
// clamped to [0,1].
func ParseResponse(response string) []schema.ExtractedIntent {
	var out []schema.ExtractedIntent

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var in schema.ExtractedIntent
		in.Confidence = DefaultLLMConfidence

		for _, field := range strings.Split(line, "|") {
			key, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			value = strings.TrimSpace(value)

			switch key {
			case "ACTION":
				in.Action = value
			case "PARAM":
				if !strings.EqualFold(value, "none") {
					in.Parameter = value
				}
			case "CONFIDENCE":
				if f, err := strconv.ParseFloat(value, 64); err == nil {
					in.Confidence = clamp01(f)
				}
			}
		}

		if in.Action != "" {
			out = append(out, in)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
