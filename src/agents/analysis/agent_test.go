package analysis

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenghchen/calhacks2025/src/ai/core"
	"github.com/zhenghchen/calhacks2025/src/extraction"
	"github.com/zhenghchen/calhacks2025/src/types"
)

const transcript = "Hi, I'm Dana Reyes. We're a seed-stage logistics startup in Austin doing $40k MRR with 6 people."

func scriptedModel(calls *int32) core.Client {
	return core.ClientFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
		atomic.AddInt32(calls, 1)
		prompt := req.Messages[0].Content[0].Text
		var body string
		switch {
		case strings.HasPrefix(prompt, "You are a QUANTITATIVE"):
			body = "```json\n" + `{"revenue": 40000, "consumer_acquisition_cost": null, "team_size": 6, "stage": "Seed", "region": "Austin", "industry": "Logistics", "founder_name": "Dana Reyes", "verdict": "PASS", "reasoning": "Healthy MRR."}` + "\n```"
		case strings.HasPrefix(prompt, "You are a QUALITATIVE"):
			body = `{"pedigree": null, "repeat_founder": false, "social_capital": null, "conviction_analysis": "c", "clarity_analysis": "c", "passion_analysis": "p", "coachability_analysis": "c", "verdict": "FAIL", "reasoning": "Thin background."}`
		case strings.HasPrefix(prompt, "You are a STRATEGIC"):
			body = `{"company_values": "Speed", "business_model": "SaaS fees", "market_originality": "Crowded", "overall_strength_of_pitch": "Clear", "verdict": "PASS", "reasoning": "Viable."}`
		}
		return &core.Response{StopReason: core.StopEndTurn, Content: []core.ContentBlock{core.TextBlock(body)}}, nil
	})
}

func TestAgentsDecodeTheirOwnSchemas(t *testing.T) {
	var calls int32
	client := extraction.NewClient(scriptedModel(&calls), "m", 0)
	ctx := context.Background()

	quant, err := NewQuantitative(client, nil).Analyze(ctx, transcript)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", types.StringValue(quant.FounderName))
	assert.Equal(t, "Logistics", types.StringValue(quant.Industry))
	assert.Nil(t, quant.ConsumerAcquisitionCost)
	require.NotNil(t, quant.TeamSize)
	assert.Equal(t, 6, *quant.TeamSize)

	qual, err := NewQualitative(client, nil).Analyze(ctx, transcript)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictFail, qual.Verdict)
	assert.Nil(t, qual.Pedigree)

	strat, err := NewStrategic(client, nil).Analyze(ctx, transcript)
	require.NoError(t, err)
	assert.Equal(t, "SaaS fees", strat.BusinessModel)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPromptsCarryTranscriptAndBudgets(t *testing.T) {
	for _, p := range []extraction.Prompt{quantitativePrompt, qualitativePrompt, strategicPrompt} {
		rendered, err := p.Render(transcript)
		require.NoError(t, err, p.Name)
		assert.True(t, strings.HasSuffix(rendered, "TRANSCRIPT:\n"+transcript), p.Name)
		assert.Contains(t, rendered, `"verdict": "PASS" | "FAIL"`, p.Name)
	}
	assert.Equal(t, 1024, quantitativePrompt.MaxTokens)
	assert.Equal(t, 1500, qualitativePrompt.MaxTokens)
	assert.Equal(t, 1500, strategicPrompt.MaxTokens)
}

func TestAgentSurfacesExtractionErrors(t *testing.T) {
	model := core.ClientFunc(func(ctx context.Context, req core.Request) (*core.Response, error) {
		return &core.Response{Content: []core.ContentBlock{core.TextBlock("I cannot help with that.")}}, nil
	})
	_, err := NewStrategic(extraction.NewClient(model, "m", 0), nil).Analyze(context.Background(), transcript)

	var malformed *extraction.MalformedOutputError
	assert.ErrorAs(t, err, &malformed)
}
