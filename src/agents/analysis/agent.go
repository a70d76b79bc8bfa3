// Package analysis holds the three single-shot pitch reviewers. Each one is
// an extraction prompt bound to a result type; none of them use tools.
package analysis

import (
	"context"
	"time"

	"github.com/zhenghchen/calhacks2025/src/extraction"
	"github.com/zhenghchen/calhacks2025/src/logging"
	"github.com/zhenghchen/calhacks2025/src/types"
)

// Agent runs one extraction prompt against a transcript.
type Agent[T any] struct {
	name   string
	prompt extraction.Prompt
	client *extraction.Client
	log    logging.Logger
}

// Name identifies the agent in logs.
func (a *Agent[T]) Name() string { return a.name }

// Analyze performs a single model round trip and returns the typed review.
func (a *Agent[T]) Analyze(ctx context.Context, transcript string) (T, error) {
	start := time.Now()
	out, err := extraction.Extract[T](ctx, a.client, a.prompt, transcript)
	if err != nil {
		a.log.Warnf("%s agent failed after %s: %v (%s)", a.name, time.Since(start).Round(time.Millisecond), err, logging.Classify(err))
		return out, err
	}
	a.log.Infof("%s agent completed in %s", a.name, time.Since(start).Round(time.Millisecond))
	return out, nil
}

// NewQuantitative extracts business metrics and a metrics verdict.
func NewQuantitative(client *extraction.Client, log logging.Logger) *Agent[types.QuantitativeAnalysis] {
	return &Agent[types.QuantitativeAnalysis]{name: "quantitative", prompt: quantitativePrompt, client: client, log: logging.OrNop(log)}
}

// NewQualitative assesses the founder's background and communication.
func NewQualitative(client *extraction.Client, log logging.Logger) *Agent[types.QualitativeAnalysis] {
	return &Agent[types.QualitativeAnalysis]{name: "qualitative", prompt: qualitativePrompt, client: client, log: logging.OrNop(log)}
}

// NewStrategic reviews the business model and market position.
func NewStrategic(client *extraction.Client, log logging.Logger) *Agent[types.StrategicAnalysis] {
	return &Agent[types.StrategicAnalysis]{name: "strategic", prompt: strategicPrompt, client: client, log: logging.OrNop(log)}
}
