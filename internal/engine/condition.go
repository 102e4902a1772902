package engine

import (
	"strings"

	"github.com/voxflow/voxflow/internal/expressions"
)

// Guard condition operators. The grammar is deliberately small:
//
//	<lhs> contains <rhs>
//	<lhs> equals <rhs>
//	<lhs> startsWith <rhs>
//	<lhs> endsWith <rhs>
//	<lhs> isEmpty
//	<lhs> isNotEmpty
//	<expr>                 (truthy when non-empty after resolution)
//
// Both sides are template-resolved against the run context before
// comparison; string comparisons are case-insensitive. The first
// operator token found wins, scanning left to right.
var binaryOps = []string{" contains ", " equals ", " startsWith ", " endsWith "}

const (
	opIsEmpty    = " isEmpty"
	opIsNotEmpty = " isNotEmpty"
)

// EvaluateCondition evaluates a guard expression against the run context.
func EvaluateCondition(expression string, runCtx *expressions.Context) bool {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true
	}

	for _, op := range binaryOps {
		idx := strings.Index(expression, op)
		if idx < 0 {
			continue
		}
		lhs := resolveOperand(expression[:idx], runCtx)
		rhs := resolveOperand(expression[idx+len(op):], runCtx)
		switch strings.TrimSpace(op) {
		case "contains":
			return strings.Contains(strings.ToLower(lhs), strings.ToLower(rhs))
		case "equals":
			return strings.EqualFold(lhs, rhs)
		case "startsWith":
			return strings.HasPrefix(strings.ToLower(lhs), strings.ToLower(rhs))
		case "endsWith":
			return strings.HasSuffix(strings.ToLower(lhs), strings.ToLower(rhs))
		}
	}

	if strings.HasSuffix(expression, opIsNotEmpty) {
		lhs := resolveOperand(strings.TrimSuffix(expression, opIsNotEmpty), runCtx)
		return lhs != ""
	}
	if strings.HasSuffix(expression, opIsEmpty) {
		lhs := resolveOperand(strings.TrimSuffix(expression, opIsEmpty), runCtx)
		return lhs == ""
	}

	// Bare expression: truthy when it resolves to something non-empty.
	return resolveOperand(expression, runCtx) != ""
}

// resolveOperand template-resolves an operand and strips surrounding
// quotes so literals can be written as "urgent" or 'urgent'.
func resolveOperand(s string, runCtx *expressions.Context) string {
	s = strings.TrimSpace(expressions.Resolve(strings.TrimSpace(s), runCtx))
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
