// Package orchestrator runs the full due-diligence panel on one transcript.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/types"
)

// ErrEmptyTranscript is returned for blank input.
var ErrEmptyTranscript = errors.New("orchestrator: transcript is empty")

// Analyzer is a single-shot reviewer.
type Analyzer[T any] interface {
	Analyze(ctx context.Context, transcript string) (T, error)
}

// Verifier checks founder claims and never fails.
type Verifier interface {
	Verify(ctx context.Context, claim types.FounderClaim) types.VerificationResult
}

// Orchestrator fans the transcript out to the analysts, then verifies the
// founder and folds the four verdicts into a decision.
type Orchestrator struct {
	quantitative Analyzer[types.QuantitativeAnalysis]
	qualitative  Analyzer[types.QualitativeAnalysis]
	strategic    Analyzer[types.StrategicAnalysis]
	verifier     Verifier
	log          logging.Logger

	now   func() time.Time
	newID func() string
}

func New(
	quant Analyzer[types.QuantitativeAnalysis],
	qual Analyzer[types.QualitativeAnalysis],
	strat Analyzer[types.StrategicAnalysis],
	verifier Verifier,
	log logging.Logger,
) *Orchestrator {
	return &Orchestrator{
		quantitative: quant,
		qualitative:  qual,
		strategic:    strat,
		verifier:     verifier,
		log:          logging.OrNop(log),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Evaluate produces a decision, or the first analyst error. No partial
// decision is ever returned.
func (o *Orchestrator) Evaluate(ctx context.Context, transcript string) (*types.DueDiligenceDecision, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}
	start := o.now()

	var (
		quant types.QuantitativeAnalysis
		qual  types.QualitativeAnalysis
		strat types.StrategicAnalysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quant, err = o.quantitative.Analyze(gctx, transcript)
		return wrap("quantitative", err)
	})
	g.Go(func() error {
		var err error
		qual, err = o.qualitative.Analyze(gctx, transcript)
		return wrap("qualitative", err)
	})
	g.Go(func() error {
		var err error
		strat, err = o.strategic.Analyze(gctx, transcript)
		return wrap("strategic", err)
	})
	if err := g.Wait(); err != nil {
		o.log.Errorf("orchestrator: analysis failed: %v", err)
		return nil, err
	}
	o.log.Infof("orchestrator: analysts done (quant=%s qual=%s strat=%s)", quant.Verdict, qual.Verdict, strat.Verdict)

	claim := BuildClaim(quant, qual)
	verification := o.verifier.Verify(ctx, claim)

	decision := types.NewDecision(o.newID(), o.now(), quant, qual, strat, verification)
	o.log.Infof("orchestrator: decision %s accept=%t in %s", decision.ID, decision.Accept, o.now().Sub(start).Round(time.Millisecond))
	return decision, nil
}

// BuildClaim collects what the verifier should check. The pitch rarely names
// the company explicitly, so the industry stands in as its label. The
// pedigree text doubles as the school claim.
func BuildClaim(quant types.QuantitativeAnalysis, qual types.QualitativeAnalysis) types.FounderClaim {
	return types.FounderClaim{
		FounderName:   types.StringValue(quant.FounderName),
		Company:       types.StringValue(quant.Industry),
		School:        types.StringValue(qual.Pedigree),
		Pedigree:      types.StringValue(qual.Pedigree),
		SocialCapital: types.StringValue(qual.SocialCapital),
	}
}

func wrap(agent string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s agent: %w", agent, err)
}
