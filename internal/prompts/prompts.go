// Package prompts holds the static prompt templates, the welcome message,
// and the phase-transition trigger phrases used by the discovery
// conversation. All data here is immutable; a Library is constructed once
// at startup and injected wherever prompt text is needed.
package prompts

import (
	"fmt"

	"github.com/dstarenko/ideascope/internal/domain"
)

// SystemPrompt is the global persona prepended to every model call.
const SystemPrompt = `You are an experienced startup advisor guiding a founder through
a structured discovery conversation about their idea. You ask sharp, specific
questions, one theme at a time, and you keep answers grounded in what the
founder has actually said. Be direct and concise. Never invent facts about
the founder or their market.`

// WelcomeMessage seeds every new session as the first assistant turn.
const WelcomeMessage = `Hi! I'm here to help you sharpen your startup idea before we run
market research on it. Tell me about the idea in your own words — what it is,
who it's for, and what made you want to build it.`

const visionPrompt = `The conversation is in the VISION phase. Draw out the founder's core
vision: the problem, the customer, and why now. Ask at most one or two
questions per reply. When you have a clear picture of the problem, the
customer, and the motivation, say that you have a clear picture of their
vision and that you're ready to explore some deeper questions.`

const gapsPrompt = `The conversation is in the GAPS phase. Probe the unknowns: competition,
pricing, distribution, regulatory concerns, and the assumptions the founder
has not validated. Name the riskiest assumptions explicitly as areas to
validate. When the biggest gaps have been surfaced, say it's time to talk
about founder fit and their position as a founder for this specific idea.`

const founderFitPrompt = `The conversation is in the FOUNDER FIT phase. Understand the founder
themselves: technical and domain skills, time, capital, network, and
motivation relative to this idea. When you have a good sense of their
strengths, say you will synthesize everything into a research prompt for
them.`

const synthesisPrompt = `The conversation is in the SYNTHESIS phase. Produce the final synthesis
of this entire conversation as a single JSON object and NOTHING else — no
prose before or after, no markdown fences. The JSON must match this shape
exactly:

` + SynthesisSchema

// SynthesisSchema describes the JSON contract of the synthesis payload. It is
// embedded into the synthesis phase prompt and into the force-synthesis prompt.
const SynthesisSchema = `{
  "tldr": {
    "refinedIdea": "one-paragraph refined idea statement",
    "targetMarket": "who the idea serves",
    "keyDifferentiator": "what sets it apart",
    "mainRisks": ["risk 1", "risk 2", "risk 3"],
    "founderFitScore": 7
  },
  "fullPrompt": {
    "problemStatement": "...",
    "targetCustomer": {
      "profile": "...",
      "painPoints": ["..."],
      "currentSolutions": "..."
    },
    "valueProposition": "...",
    "hypotheses": ["..."],
    "competitiveResearch": ["..."],
    "marketIndicators": ["..."],
    "evaluationCriteria": ["..."]
  },
  "founderFit": {
    "technicalSkills": {"has": ["..."], "needs": ["..."]},
    "domainExpertise": "...",
    "resources": {"time": "...", "capital": "...", "network": "..."},
    "motivation": "...",
    "learningPath": ["..."],
    "hireRecommendations": ["..."]
  }
}

founderFitScore is an integer from 1 to 10. mainRisks lists the three most
important risks.`

// ForceSynthesisPrompt instructs the model to synthesize immediately from
// whatever transcript exists, bypassing the phased progression.
const ForceSynthesisPrompt = `Synthesize the conversation so far into the final discovery output,
even if some phases were not fully explored. Infer conservatively where the
founder gave no information. Respond with a single JSON object and NOTHING
else — no prose, no markdown fences. The JSON must match this shape exactly:

` + SynthesisSchema

// Trigger phrases. The detector lower-cases the assistant's reply and tests
// substring containment against the list for the current phase; any match
// advances the conversation one phase. The phrases mirror the closing
// sentences the phase prompts ask the model to emit.
var (
	visionTriggers = []string{
		"clear picture of your vision",
		"ready to explore some deeper questions",
		"let's dig into the gaps",
	}
	gapsTriggers = []string{
		"areas to validate",
		"your position as a founder",
		"let's talk about founder fit",
	}
	founderFitTriggers = []string{
		"sense of your strengths",
		"synthesize everything",
		"research prompt for you",
	}
)

// Library supplies prompt text and trigger phrases per phase.
type Library struct {
	system         string
	welcome        string
	forceSynthesis string
	phasePrompts   map[domain.Phase]string
	triggers       map[domain.Phase][]string
}

// DefaultLibrary returns the production prompt set.
func DefaultLibrary() *Library {
	return &Library{
		system:         SystemPrompt,
		welcome:        WelcomeMessage,
		forceSynthesis: ForceSynthesisPrompt,
		phasePrompts: map[domain.Phase]string{
			domain.PhaseVision:     visionPrompt,
			domain.PhaseGaps:       gapsPrompt,
			domain.PhaseFounderFit: founderFitPrompt,
			domain.PhaseSynthesis:  synthesisPrompt,
		},
		triggers: map[domain.Phase][]string{
			domain.PhaseVision:     visionTriggers,
			domain.PhaseGaps:       gapsTriggers,
			domain.PhaseFounderFit: founderFitTriggers,
		},
	}
}

// System returns the global persona prompt.
func (l *Library) System() string {
	return l.system
}

// Welcome returns the assistant message that seeds a new session.
func (l *Library) Welcome() string {
	return l.welcome
}

// ForceSynthesis returns the single-shot synthesis instruction.
func (l *Library) ForceSynthesis() string {
	return l.forceSynthesis
}

// ForPhase returns the phase-specific instruction appended to the system
// prompt. Asking for a phase without a prompt (Complete, or an unknown tag)
// is a programming error, not a runtime condition, so it panics.
func (l *Library) ForPhase(p domain.Phase) string {
	prompt, ok := l.phasePrompts[p]
	if !ok {
		panic(fmt.Sprintf("prompts: no prompt for phase %q", string(p)))
	}
	return prompt
}

// Triggers returns the forward-transition trigger phrases for a phase.
// Phases with no keyword-driven transition (Synthesis, Complete) return nil.
func (l *Library) Triggers(p domain.Phase) []string {
	return l.triggers[p]
}
