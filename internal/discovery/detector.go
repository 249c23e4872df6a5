package discovery

import (
	"strings"

	"github.com/dstarenko/ideascope/internal/domain"
	"github.com/dstarenko/ideascope/internal/prompts"
)

// Detect decides whether the assistant's reply advances the conversation to
// the next phase. Only Vision, Gaps and FounderFit transition on keywords:
// the model self-reports readiness by emitting one of the configured trigger
// phrases, matched case-insensitively as substrings. The transition out of
// Synthesis is structural (a valid synthesis parse) and never goes through
// this detector.
//
// A reply containing no trigger phrase leaves the phase unchanged. That is
// the expected degraded mode, not an error: the conversation simply
// continues in the current phase.
func Detect(lib *prompts.Library, current domain.Phase, modelOutput string) domain.Phase {
	switch current {
	case domain.PhaseVision, domain.PhaseGaps, domain.PhaseFounderFit:
	default:
		return current
	}

	lower := strings.ToLower(modelOutput)
	for _, phrase := range lib.Triggers(current) {
		if strings.Contains(lower, phrase) {
			return current.Next()
		}
	}
	return current
}
