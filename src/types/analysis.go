package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the pass/fail call every reviewer must make.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Valid reports whether v is one of the two accepted verdicts.
func (v Verdict) Valid() bool {
	return v == VerdictPass || v == VerdictFail
}

// UnmarshalJSON rejects anything other than PASS or FAIL so that a sloppy
// model reply surfaces as malformed output instead of an implicit reject.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("verdict: %w", err)
	}
	candidate := Verdict(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return fmt.Errorf("verdict: unsupported value %q", raw)
	}
	*v = candidate
	return nil
}

// QuantitativeAnalysis holds hard business metrics pulled from the pitch.
type QuantitativeAnalysis struct {
	Revenue                 *float64 `json:"revenue"`
	ConsumerAcquisitionCost *float64 `json:"consumer_acquisition_cost"`
	TeamSize                *int     `json:"team_size"`
	Stage                   *string  `json:"stage"`
	Region                  *string  `json:"region"`
	Industry                *string  `json:"industry"`
	FounderName             *string  `json:"founder_name"`
	Verdict                 Verdict  `json:"verdict"`
	Reasoning               string   `json:"reasoning"`
}

// QualitativeAnalysis captures the founder assessment.
type QualitativeAnalysis struct {
	Pedigree             *string `json:"pedigree"`
	RepeatFounder        bool    `json:"repeat_founder"`
	SocialCapital        *string `json:"social_capital"`
	ConvictionAnalysis   string  `json:"conviction_analysis"`
	ClarityAnalysis      string  `json:"clarity_analysis"`
	PassionAnalysis      string  `json:"passion_analysis"`
	CoachabilityAnalysis string  `json:"coachability_analysis"`
	Verdict              Verdict `json:"verdict"`
	Reasoning            string  `json:"reasoning"`
}

// StrategicAnalysis covers business model and market positioning.
type StrategicAnalysis struct {
	CompanyValues          *string `json:"company_values"`
	BusinessModel          string  `json:"business_model"`
	MarketOriginality      string  `json:"market_originality"`
	OverallStrengthOfPitch string  `json:"overall_strength_of_pitch"`
	Verdict                Verdict `json:"verdict"`
	Reasoning              string  `json:"reasoning"`
}

// Validate is called by the extraction layer once JSON decoding succeeded.
func (q QuantitativeAnalysis) Validate() error { return requireVerdict(q.Verdict) }

// Validate is called by the extraction layer once JSON decoding succeeded.
func (q QualitativeAnalysis) Validate() error { return requireVerdict(q.Verdict) }

// Validate is called by the extraction layer once JSON decoding succeeded.
func (s StrategicAnalysis) Validate() error { return requireVerdict(s.Verdict) }

func requireVerdict(v Verdict) error {
	if !v.Valid() {
		return fmt.Errorf("verdict missing or invalid: %q", string(v))
	}
	return nil
}

// FounderClaim is what the verifier is asked to corroborate. Every field is optional.
type FounderClaim struct {
	FounderName   string `json:"founder_name,omitempty"`
	Company       string `json:"company,omitempty"`
	School        string `json:"school,omitempty"`
	Pedigree      string `json:"pedigree,omitempty"`
	SocialCapital string `json:"social_capital,omitempty"`
}

// Empty reports whether there is nothing to verify.
func (c FounderClaim) Empty() bool {
	return c == FounderClaim{}
}

// StringValue dereferences an optional string, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
