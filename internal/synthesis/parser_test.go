package synthesis

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const validPayload = `{
  "tldr": {
    "refinedIdea": "A marketplace for refurbished lab equipment",
    "targetMarket": "University research labs in Europe",
    "keyDifferentiator": "Certified calibration included with every sale",
    "mainRisks": ["thin supply", "long sales cycles", "certification liability"],
    "founderFitScore": 7
  },
  "fullPrompt": {
    "problemStatement": "Labs overpay for new equipment they replace every few years",
    "targetCustomer": {
      "profile": "Lab managers at mid-size universities",
      "painPoints": ["budget pressure", "procurement delays"],
      "currentSolutions": "eBay and direct vendor refurbs"
    },
    "valueProposition": "Certified refurbished gear at half the price",
    "hypotheses": ["labs will buy used if calibration is certified"],
    "competitiveResearch": ["LabX", "vendor refurb programs"],
    "marketIndicators": ["university budget trends"],
    "evaluationCriteria": ["supply acquisition cost"]
  },
  "founderFit": {
    "technicalSkills": {"has": ["marketplace engineering"], "needs": ["calibration domain"]},
    "domainExpertise": "Worked 4 years in lab procurement",
    "resources": {"time": "full-time", "capital": "50k savings", "network": "university contacts"},
    "motivation": "Saw the waste first-hand",
    "learningPath": ["calibration certification process"],
    "hireRecommendations": ["calibration engineer"]
  }
}`

func TestParseAcceptsValidPayload(t *testing.T) {
	t.Parallel()

	out, err := Parse(validPayload)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if out.TLDR.FounderFitScore != 7 {
		t.Errorf("expected founderFitScore 7, got %d", out.TLDR.FounderFitScore)
	}
	if len(out.TLDR.MainRisks) != 3 {
		t.Errorf("expected 3 main risks, got %d", len(out.TLDR.MainRisks))
	}
	if out.FullPrompt.TargetCustomer.Profile == "" {
		t.Error("expected target customer profile to be populated")
	}
}

func TestParseFenceVariantsAreTransparent(t *testing.T) {
	t.Parallel()

	want, err := Parse(validPayload)
	if err != nil {
		t.Fatalf("Parse of bare payload failed: %v", err)
	}

	variants := map[string]string{
		"json fence":          "```json\n" + validPayload + "\n```",
		"bare fence":          "```\n" + validPayload + "\n```",
		"trailing whitespace": "```json\n" + validPayload + "\n```  \n\n",
		"leading whitespace":  "\n\n  ```json\n" + validPayload + "\n```",
	}
	for name, raw := range variants {
		got, err := Parse(raw)
		if err != nil {
			t.Errorf("%s: Parse failed: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: fenced parse differs from bare parse", name)
		}
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":              "",
		"not json":           "Let me think about that a bit more.",
		"truncated":          validPayload[:len(validPayload)/2],
		"missing score":      strings.Replace(validPayload, `"founderFitScore": 7`, `"founderFitScore": 0`, 1),
		"score out of range": strings.Replace(validPayload, `"founderFitScore": 7`, `"founderFitScore": 15`, 1),
		"missing risks":      strings.Replace(validPayload, `"mainRisks": ["thin supply", "long sales cycles", "certification liability"]`, `"mainRisks": []`, 1),
		"missing idea":       strings.Replace(validPayload, `"refinedIdea": "A marketplace for refurbished lab equipment"`, `"refinedIdea": ""`, 1),
	}
	for name, raw := range cases {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidSynthesis) {
			t.Errorf("%s: expected ErrInvalidSynthesis, got %v", name, err)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"fence with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"trailing whitespace", "```json\n{\"a\":1}\n```\n  ", `{"a":1}`},
		{"fence on same line", "```{\"a\":1}```", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
