package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Extraction strategy names, recorded for tracing which path parsed a
// model response.
const (
	ExtractStrategyFence      = "fenced_block"
	ExtractStrategyLooseFence = "loose_fence"
	ExtractStrategyDirect     = "direct"
	ExtractStrategyBraces     = "brace_scan"
)

var fenceRe = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of raw model output. Models wrap
// JSON in markdown fences, prepend prose, or emit it bare; the strategies
// are tried in order of strictness. Returns the decoded object and the
// strategy that succeeded, or ok=false when nothing parses.
func ExtractJSON(raw string) (map[string]any, string, bool) {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		if obj, ok := tryParse(m[1]); ok {
			return obj, ExtractStrategyFence, true
		}
	}

	if body, found := stripLeadingFence(raw); found {
		if obj, ok := tryParse(body); ok {
			return obj, ExtractStrategyLooseFence, true
		}
	}

	if obj, ok := tryParse(raw); ok {
		return obj, ExtractStrategyDirect, true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if obj, ok := tryParse(raw[start : end+1]); ok {
			return obj, ExtractStrategyBraces, true
		}
	}

	return nil, "", false
}

// stripLeadingFence drops an opening fence line (``` or ```json) and a
// trailing ``` when one exists. A closing fence is not required.
func stripLeadingFence(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}
	body := trimmed[3:]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return body, true
}

func tryParse(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}
