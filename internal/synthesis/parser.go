// Package synthesis parses and validates the model's final-phase output
// against the structured synthesis contract.
package synthesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dstarenko/ideascope/internal/domain"
)

// ErrInvalidSynthesis marks a recoverable parse or validation failure.
// The orchestrator treats it as "phase did not advance", not as a fatal error.
var ErrInvalidSynthesis = errors.New("invalid synthesis output")

// Parse interprets raw model output as a SynthesisOutput. Providers honor
// "raw JSON only" instructions inconsistently, so a markdown code fence
// around the payload is stripped before parsing. Acceptance is atomic:
// either the whole payload validates or the call fails.
func Parse(raw string) (*domain.SynthesisOutput, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidSynthesis)
	}

	var out domain.SynthesisOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSynthesis, err)
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSynthesis, err)
	}

	return &out, nil
}

// StripCodeFence removes a single markdown code fence wrapping the text,
// with or without a language tag. Text without a fence is returned
// unchanged apart from whitespace trimming.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// Drop the language tag, if any, on the opening fence line.
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		if !strings.ContainsAny(first, "{[") {
			text = text[idx+1:]
		}
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
