package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/designos/designos-backend/internal/types"
)

//go:embed templates.yaml
var promptTemplatesYAML []byte

type promptTemplates struct {
	System string `yaml:"system"`
	Stages map[string]struct {
		Task string `yaml:"task"`
	} `yaml:"stages"`
}

var loadedTemplates = mustLoadTemplates()

func mustLoadTemplates() promptTemplates {
	var t promptTemplates
	if err := yaml.Unmarshal(promptTemplatesYAML, &t); err != nil {
		panic(fmt.Sprintf("parse prompt templates: %v", err))
	}
	return t
}

// StageContextDeps maps each generative stage to the completed stages whose
// data is injected into its prompt, in stage order.
var StageContextDeps = map[string][]string{
	types.StageNameProduct:        {},
	types.StageNameDataModel:      {types.StageNameProduct},
	types.StageNameDatabase:       {types.StageNameDataModel},
	types.StageNameAPI:            {types.StageNameProduct, types.StageNameDataModel},
	types.StageNameStack:          {types.StageNameProduct, types.StageNameDatabase},
	types.StageNameDesign:         {types.StageNameProduct},
	types.StageNameSections:       {types.StageNameProduct, types.StageNameDataModel, types.StageNameDatabase, types.StageNameAPI, types.StageNameStack, types.StageNameDesign},
	types.StageNameInfrastructure: {types.StageNameDatabase, types.StageNameStack},
}

// BuildPrompt assembles the system and user prompts for a stage.
// contextData is keyed by stage name and holds the raw JSON data of each
// completed dependency stage.
func BuildPrompt(stageName string, contextData map[string]json.RawMessage, userInput string) (system string, user string, err error) {
	tmpl, ok := loadedTemplates.Stages[stageName]
	if !ok {
		return "", "", fmt.Errorf("no prompt template for stage %q", stageName)
	}

	var b strings.Builder
	deps := StageContextDeps[stageName]
	if len(deps) > 0 {
		b.WriteString("## Context from completed stages\n\n")
		for _, dep := range deps {
			data, ok := contextData[dep]
			if !ok || len(data) == 0 {
				continue
			}
			cfg, _ := types.StageConfigByName(dep)
			b.WriteString(fmt.Sprintf("### %s\n```json\n%s\n```\n\n", cfg.Label, string(data)))
		}
	}

	b.WriteString("## Task\n\n")
	b.WriteString(strings.TrimSpace(tmpl.Task))
	b.WriteString("\n")

	if strings.TrimSpace(userInput) != "" {
		b.WriteString("\n## User direction\n\n")
		b.WriteString(strings.TrimSpace(userInput))
		b.WriteString("\n")
	}

	return strings.TrimSpace(loadedTemplates.System), b.String(), nil
}
