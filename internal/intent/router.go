package intent

import (
	"strings"

	"github.com/voxflow/voxflow/pkg/schema"
)

// Route resolves the target workflow for each extracted intent.
// Resolution order: explicit target id (including the detect-only
// sentinel, which is preserved), then best-effort name similarity
// against the known workflows. Intents with no plausible target keep an
// empty TargetWorkflowID and are skipped by the dispatcher.
func Route(intents []schema.ExtractedIntent, workflows []*schema.WorkflowDefinition) []schema.ExtractedIntent {
	routed := make([]schema.ExtractedIntent, len(intents))
	copy(routed, intents)

	for i := range routed {
		if routed[i].TargetWorkflowID != "" {
			continue
		}
		routed[i].TargetWorkflowID = bestMatch(routed[i].Action, workflows)
	}
	return routed
}

// bestMatch scores each workflow name against the action by token
// overlap and returns the id of the best scorer, or "" when nothing
// overlaps at all.
func bestMatch(action string, workflows []*schema.WorkflowDefinition) string {
	actionTokens := tokenize(action)
	if len(actionTokens) == 0 {
		return ""
	}

	bestID := ""
	bestScore := 0.0
	for _, wf := range workflows {
		score := overlapScore(actionTokens, tokenize(wf.Name))
		if score > bestScore {
			bestScore = score
			bestID = wf.ID
		}
	}
	return bestID
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// overlapScore is the fraction of action tokens present in the name.
func overlapScore(actionTokens, nameTokens []string) float64 {
	if len(nameTokens) == 0 {
		return 0
	}
	nameSet := make(map[string]struct{}, len(nameTokens))
	for _, tok := range nameTokens {
		nameSet[tok] = struct{}{}
	}
	hits := 0
	for _, tok := range actionTokens {
		if _, ok := nameSet[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(actionTokens))
}
