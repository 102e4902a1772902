package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// transform applies a builtin text transform or evaluates an expr/jq
// program against the resolved input. The expression engines see the
// input under "input" plus the full output map, so multi-step pipelines
// can reshape earlier results.
func (d *Dispatcher) transform(ctx context.Context, cfg *schema.TransformConfig, runCtx *expressions.Context) (string, error) {
	input := expressions.Resolve(cfg.Input, runCtx)
	if cfg.Input == "" {
		input = runCtx.LastOutput()
	}

	switch cfg.Mode {
	case "uppercase":
		return strings.ToUpper(input), nil
	case "lowercase":
		return strings.ToLower(input), nil
	case "trim":
		return strings.TrimSpace(input), nil
	case "replace":
		find := expressions.Resolve(cfg.Find, runCtx)
		if find == "" {
			return "", schema.NewError(schema.ErrCodeValidation, "transform: replace mode requires find")
		}
		return strings.ReplaceAll(input, find, expressions.Resolve(cfg.Replace, runCtx)), nil
	case "expr":
		out, err := d.exprEngine.Evaluate(ctx, cfg.Expression, transformEnv(input, runCtx))
		if err != nil {
			return "", err
		}
		return stringifyResult(out), nil
	case "jq":
		out, err := d.jqEngine.Evaluate(ctx, cfg.Expression, transformEnv(input, runCtx))
		if err != nil {
			return "", err
		}
		return stringifyResult(out), nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "transform: unknown mode %q", cfg.Mode)
	}
}

// transformEnv builds the evaluation environment. When the input parses
// as JSON the parsed value is exposed so jq programs can walk it; the
// raw string is always available under "raw".
func transformEnv(input string, runCtx *expressions.Context) map[string]any {
	var parsed any = input
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			parsed = v
		}
	}

	outputs := make(map[string]any)
	for k, v := range runCtx.Outputs() {
		outputs[k] = v
	}

	return map[string]any{
		"input":      parsed,
		"raw":        input,
		"outputs":    outputs,
		"transcript": runCtx.SourceText,
		"title":      runCtx.Title,
	}
}

// stringifyResult renders an expression result back into context text.
func stringifyResult(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
