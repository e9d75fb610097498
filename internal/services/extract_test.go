package services

import "testing"

func TestExtractJSON_FencedBlock(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"name\": \"app\", \"count\": 2}\n```\nDone."
	obj, strategy, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if strategy != ExtractStrategyFence {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyFence, strategy)
	}
	if obj["name"] != "app" {
		t.Fatalf("expected name=app got %v", obj["name"])
	}
}

func TestExtractJSON_LooseFenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"ok\": true}\n```"
	obj, strategy, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if strategy != ExtractStrategyLooseFence {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyLooseFence, strategy)
	}
	if obj["ok"] != true {
		t.Fatalf("expected ok field true, got %v", obj["ok"])
	}
}

func TestExtractJSON_BareObjectParsesDirectly(t *testing.T) {
	_, strategy, ok := ExtractJSON(`{"a": 1}`)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if strategy != ExtractStrategyDirect {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyDirect, strategy)
	}
}

func TestExtractJSON_BraceScanRecoversEmbeddedObject(t *testing.T) {
	raw := `Sure! The config you asked for is {"mode": "dark"} as requested.`
	obj, strategy, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if strategy != ExtractStrategyBraces {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyBraces, strategy)
	}
	if obj["mode"] != "dark" {
		t.Fatalf("expected mode=dark got %v", obj["mode"])
	}
}

func TestExtractJSON_RejectsNonObjectContent(t *testing.T) {
	for _, raw := range []string{"no json here", "[1, 2, 3]", "null", ""} {
		if _, _, ok := ExtractJSON(raw); ok {
			t.Fatalf("expected ok=false for %q", raw)
		}
	}
}

func TestExtractJSON_FenceWithBrokenJSONFallsThrough(t *testing.T) {
	raw := "```json\nnot actually json\n```\nbut also {\"valid\": 1} here"
	obj, strategy, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected recovery via brace scan")
	}
	if strategy != ExtractStrategyBraces {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyBraces, strategy)
	}
	if obj["valid"] != float64(1) {
		t.Fatalf("expected valid=1 got %v", obj["valid"])
	}
}

func TestExtractJSON_OpenFenceWithoutClose(t *testing.T) {
	raw := "```json\n{\"theme\": \"dark\"}"
	obj, strategy, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if strategy != ExtractStrategyLooseFence {
		t.Fatalf("expected strategy %q got %q", ExtractStrategyLooseFence, strategy)
	}
	if obj["theme"] != "dark" {
		t.Fatalf("expected theme=dark got %v", obj["theme"])
	}
}
