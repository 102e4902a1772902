package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/voxflow/voxflow/pkg/schema"
)

// ImportFile loads a definition from a YAML or JSON file and stores it.
// An existing definition with the same id is replaced through the
// draft/commit path so ModifiedAt is bumped consistently.
func (l *Library) ImportFile(ctx context.Context, path string) (*schema.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "read %s: %s", path, err.Error()).WithCause(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse %s: %s", path, err.Error()).WithCause(err)
		}
	case ".json":
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported definition file %s", path)
	}

	def := &schema.WorkflowDefinition{}
	if err := json.Unmarshal(data, def); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode %s: %s", path, err.Error()).WithCause(err)
	}

	if err := l.Save(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// ImportDir imports every .yaml/.yml/.json file in a directory,
// skipping files that fail to parse or validate.
func (l *Library) ImportDir(ctx context.Context, dir string) ([]*schema.WorkflowDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "read dir %s: %s", dir, err.Error()).WithCause(err)
	}

	var imported []*schema.WorkflowDefinition
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		def, err := l.ImportFile(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			l.logger.Warn("skipping definition file", "file", e.Name(), "error", err.Error())
			continue
		}
		imported = append(imported, def)
	}
	return imported, nil
}

// yamlToJSON converts a YAML document to JSON bytes so the tagged-union
// step decoder can run on it.
func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(v))
}

// normalizeYAML converts map[any]any keys (yaml.v3 emits these for
// non-string keys) into string keys so json.Marshal accepts the value.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[toString(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return strings.Trim(string(data), `"`)
}
