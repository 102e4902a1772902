package expressions

import "context"

// Engine is the contract shared by the transform-step evaluators:
// expr programs over the step environment and jq queries over JSON
// outputs. Implementations cache compiled programs and are safe for
// concurrent runs.
type Engine interface {
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
