package services

import (
	"math"
	"testing"
)

func TestPricingForModel_LongestPrefixWins(t *testing.T) {
	p := PricingForModel("gpt-4o-mini-2024-07-18")
	if p.InputPerMillion != 0.15 || p.OutputPerMillion != 0.6 {
		t.Fatalf("expected gpt-4o-mini pricing, got %+v", p)
	}

	p = PricingForModel("gpt-4o-2024-08-06")
	if p.InputPerMillion != 2.5 || p.OutputPerMillion != 10.0 {
		t.Fatalf("expected gpt-4o pricing, got %+v", p)
	}
}

func TestPricingForModel_UnknownModelUsesDefault(t *testing.T) {
	p := PricingForModel("some-unknown-model")
	if p != DefaultPricing {
		t.Fatalf("expected default pricing, got %+v", p)
	}
}

func TestEstimateCost_Arithmetic(t *testing.T) {
	// claude-sonnet: 3.0 in / 15.0 out per million.
	got := EstimateCost("claude-sonnet-4", 1_000_000, 200_000)
	want := 3.0 + 0.2*15.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %.6f got %.6f", want, got)
	}
}

func TestEstimateCost_ZeroTokensCostNothing(t *testing.T) {
	if got := EstimateCost("claude-opus-4", 0, 0); got != 0 {
		t.Fatalf("expected 0 got %f", got)
	}
}
