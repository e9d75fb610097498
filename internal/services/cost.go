package services

import "strings"

// Pricing is USD per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing applies when the model has no table entry.
var DefaultPricing = Pricing{InputPerMillion: 2.0, OutputPerMillion: 8.0}

// modelPricing is keyed by model name prefix. Longest prefix wins.
var modelPricing = map[string]Pricing{
	"claude-opus":     {InputPerMillion: 15.0, OutputPerMillion: 75.0},
	"claude-sonnet":   {InputPerMillion: 3.0, OutputPerMillion: 15.0},
	"claude-haiku":    {InputPerMillion: 0.8, OutputPerMillion: 4.0},
	"gpt-4o":          {InputPerMillion: 2.5, OutputPerMillion: 10.0},
	"gpt-4o-mini":     {InputPerMillion: 0.15, OutputPerMillion: 0.6},
	"deepseek-chat":   {InputPerMillion: 0.27, OutputPerMillion: 1.1},
	"moonshot":        {InputPerMillion: 2.0, OutputPerMillion: 5.0},
	"kimi":            {InputPerMillion: 2.0, OutputPerMillion: 5.0},
}

func PricingForModel(model string) Pricing {
	best := ""
	for prefix := range modelPricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return DefaultPricing
	}
	return modelPricing[best]
}

// EstimateCost returns the USD cost of one call.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p := PricingForModel(model)
	return float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
}
