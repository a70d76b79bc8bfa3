package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Confidence is an ordered level: very_low < low < medium < high < very_high.
type Confidence string

const (
	ConfidenceVeryLow  Confidence = "very_low"
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "very_high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceVeryLow:  0,
	ConfidenceLow:      1,
	ConfidenceMedium:   2,
	ConfidenceHigh:     3,
	ConfidenceVeryHigh: 4,
}

// Rank returns the position of c in the ordering, or -1 when c is unknown.
func (c Confidence) Rank() int {
	if r, ok := confidenceRank[c]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether c is ordered at or above other.
func (c Confidence) AtLeast(other Confidence) bool {
	return c.Rank() >= 0 && c.Rank() >= other.Rank()
}

// UnmarshalJSON accepts the five known levels only.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	candidate := Confidence(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Rank() < 0 {
		return fmt.Errorf("confidence: unsupported value %q", raw)
	}
	*c = candidate
	return nil
}

// VerificationResult is the verifier's structured verdict.
type VerificationResult struct {
	Verified     bool       `json:"verified"`
	Confidence   Confidence `json:"confidence"`
	Reasoning    string     `json:"reasoning"`
	SourcesFound int        `json:"sources_found"`
	Details      string     `json:"details"`
	Verdict      Verdict    `json:"verdict"`
}

// Validate enforces the field constraints the model cannot be trusted with.
func (r VerificationResult) Validate() error {
	if err := requireVerdict(r.Verdict); err != nil {
		return err
	}
	if r.Confidence.Rank() < 0 {
		return fmt.Errorf("confidence missing or invalid: %q", string(r.Confidence))
	}
	if r.SourcesFound < 0 {
		return fmt.Errorf("sources_found must be >= 0, got %d", r.SourcesFound)
	}
	return nil
}

// FailSafeVerification is substituted whenever verification could not run to
// completion. It always fails.
func FailSafeVerification(cause error) VerificationResult {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	return VerificationResult{
		Verified:     false,
		Confidence:   ConfidenceVeryLow,
		Reasoning:    "Verification failed due to error: " + reason,
		SourcesFound: 0,
		Details:      "Unable to complete verification",
		Verdict:      VerdictFail,
	}
}
