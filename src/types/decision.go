package types

import "time"

// DueDiligenceDecision aggregates the four reviews of one transcript.
// Build it with NewDecision; Accept is derived, never copied from agent output.
type DueDiligenceDecision struct {
	ID                   string               `json:"id"`
	EvaluatedAt          time.Time            `json:"evaluated_at"`
	QuantitativeAnalysis QuantitativeAnalysis `json:"quantitativeAnalysis"`
	QualitativeAnalysis  QualitativeAnalysis  `json:"qualitativeAnalysis"`
	StrategicAnalysis    StrategicAnalysis    `json:"strategicAnalysis"`
	VerificationAnalysis VerificationResult   `json:"verificationAnalysis"`
	Accept               bool                 `json:"accept"`
}

// NewDecision assembles a decision and computes Accept as the AND of all verdicts.
func NewDecision(id string, at time.Time, quant QuantitativeAnalysis, qual QualitativeAnalysis, strat StrategicAnalysis, verification VerificationResult) *DueDiligenceDecision {
	return &DueDiligenceDecision{
		ID:                   id,
		EvaluatedAt:          at.UTC(),
		QuantitativeAnalysis: quant,
		QualitativeAnalysis:  qual,
		StrategicAnalysis:    strat,
		VerificationAnalysis: verification,
		Accept:               Consensus(quant.Verdict, qual.Verdict, strat.Verdict, verification.Verdict),
	}
}

// Consensus is true only when every verdict is PASS.
func Consensus(verdicts ...Verdict) bool {
	if len(verdicts) == 0 {
		return false
	}
	for _, v := range verdicts {
		if v != VerdictPass {
			return false
		}
	}
	return true
}

// Verdicts lists the four verdicts in panel order.
func (d *DueDiligenceDecision) Verdicts() []Verdict {
	return []Verdict{
		d.QuantitativeAnalysis.Verdict,
		d.QualitativeAnalysis.Verdict,
		d.StrategicAnalysis.Verdict,
		d.VerificationAnalysis.Verdict,
	}
}
