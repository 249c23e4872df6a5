package domain

import "fmt"

// SynthesisOutput is the structured payload produced at the terminal
// synthesis step. It is a value object: immutable once produced and owned
// by the session that generated it.
type SynthesisOutput struct {
	TLDR       SynthesisSummary `json:"tldr"`
	FullPrompt ResearchPrompt   `json:"fullPrompt"`
	FounderFit FounderFit       `json:"founderFit"`
}

// SynthesisSummary is the short-form view of the synthesized idea.
type SynthesisSummary struct {
	RefinedIdea       string   `json:"refinedIdea"`
	TargetMarket      string   `json:"targetMarket"`
	KeyDifferentiator string   `json:"keyDifferentiator"`
	MainRisks         []string `json:"mainRisks"`
	FounderFitScore   int      `json:"founderFitScore"`
}

// TargetCustomer describes who the idea serves.
type TargetCustomer struct {
	Profile          string   `json:"profile"`
	PainPoints       []string `json:"painPoints"`
	CurrentSolutions string   `json:"currentSolutions"`
}

// ResearchPrompt is the structured research brief fed to downstream
// market research.
type ResearchPrompt struct {
	ProblemStatement    string         `json:"problemStatement"`
	TargetCustomer      TargetCustomer `json:"targetCustomer"`
	ValueProposition    string         `json:"valueProposition"`
	Hypotheses          []string       `json:"hypotheses"`
	CompetitiveResearch []string       `json:"competitiveResearch"`
	MarketIndicators    []string       `json:"marketIndicators"`
	EvaluationCriteria  []string       `json:"evaluationCriteria"`
}

// SkillInventory splits founder skills into what they have and what the
// idea needs.
type SkillInventory struct {
	Has   []string `json:"has"`
	Needs []string `json:"needs"`
}

// FounderResources captures the founder's available time, capital and network.
type FounderResources struct {
	Time    string `json:"time"`
	Capital string `json:"capital"`
	Network string `json:"network"`
}

// FounderFit is the structured assessment of the founder relative to
// executing the discussed idea.
type FounderFit struct {
	TechnicalSkills     SkillInventory   `json:"technicalSkills"`
	DomainExpertise     string           `json:"domainExpertise"`
	Resources           FounderResources `json:"resources"`
	Motivation          string           `json:"motivation"`
	LearningPath        []string         `json:"learningPath"`
	HireRecommendations []string         `json:"hireRecommendations"`
}

const (
	minFounderFitScore = 1
	maxFounderFitScore = 10
)

// Validate checks the synthesis payload field-by-field. Acceptance is
// all-or-nothing: downstream research composition requires every field,
// so a payload with any missing required field is rejected whole.
func (o *SynthesisOutput) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"tldr.refinedIdea", o.TLDR.RefinedIdea},
		{"tldr.targetMarket", o.TLDR.TargetMarket},
		{"tldr.keyDifferentiator", o.TLDR.KeyDifferentiator},
		{"fullPrompt.problemStatement", o.FullPrompt.ProblemStatement},
		{"fullPrompt.targetCustomer.profile", o.FullPrompt.TargetCustomer.Profile},
		{"fullPrompt.valueProposition", o.FullPrompt.ValueProposition},
		{"founderFit.domainExpertise", o.FounderFit.DomainExpertise},
		{"founderFit.motivation", o.FounderFit.Motivation},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("missing required field %s", f.name)
		}
	}

	if len(o.TLDR.MainRisks) == 0 {
		return fmt.Errorf("tldr.mainRisks must not be empty")
	}

	score := o.TLDR.FounderFitScore
	if score < minFounderFitScore || score > maxFounderFitScore {
		return fmt.Errorf("founderFitScore %d out of range [%d,%d]", score, minFounderFitScore, maxFounderFitScore)
	}

	return nil
}
