package actions

import (
	"context"
	"os"
	"path/filepath"

	"github.com/voxflow/voxflow/internal/expressions"
	"github.com/voxflow/voxflow/pkg/schema"
)

// saveFileAction dispatches save-file steps: resolve the directory
// (named aliases supported), create parents as needed, write or append.
type saveFileAction struct {
	aliases map[string]string
}

// NewSaveFile creates the save-file executor. extraAliases supplement
// the built-in directory aliases and win on collision.
func NewSaveFile(extraAliases map[string]string) Action {
	aliases := defaultAliases()
	for k, v := range extraAliases {
		aliases[k] = v
	}
	return &saveFileAction{aliases: aliases}
}

func defaultAliases() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return map[string]string{
		"home":      home,
		"documents": filepath.Join(home, "Documents"),
		"downloads": filepath.Join(home, "Downloads"),
		"desktop":   filepath.Join(home, "Desktop"),
	}
}

func (a *saveFileAction) Type() schema.StepType { return schema.StepSaveFile }

func (a *saveFileAction) Execute(ctx context.Context, in Input) (string, error) {
	cfg, ok := in.Config.(*schema.SaveFileConfig)
	if !ok {
		return "", schema.NewError(schema.ErrCodeValidation, "save-file: wrong config payload")
	}

	dir := expressions.Resolve(cfg.Directory, in.RunContext)
	if resolved, ok := a.aliases[dir]; ok {
		dir = resolved
	}
	filename := expressions.SanitizeTitle(expressions.Resolve(cfg.Filename, in.RunContext))
	if dir == "" || filename == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "save-file: directory and filename are required")
	}
	content := expressions.Resolve(cfg.Content, in.RunContext)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "save-file: mkdir %s: %s", dir, err.Error()).WithCause(err)
	}

	path := filepath.Join(dir, filename)
	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "save-file: open %s: %s", path, err.Error()).WithCause(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return "", schema.NewErrorf(schema.ErrCodeExecution, "save-file: write %s: %s", path, err.Error()).WithCause(err)
	}
	return path, nil
}
