package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/types"
)

// StagePayloads is the completed data of the eight generative stages.
type StagePayloads struct {
	Product        map[string]any
	DataModel      map[string]any
	Database       map[string]any
	API            map[string]any
	Stack          map[string]any
	Design         map[string]any
	Sections       map[string]any
	Infrastructure map[string]any
}

// ContractDraft is one contract produced by the builder, before persistence.
type ContractDraft struct {
	ID                 string
	Title              string
	Type               string
	Priority           int
	Status             string
	Dependencies       []string
	Description        string
	UserStory          string
	Stack              map[string]any
	TargetFiles        []string
	Constraints        []string
	DoNotTouch         []string
	Patterns           []string
	DataModels         []map[string]any
	APIEndpoints       []map[string]any
	DesignTokens       map[string]any
	ComponentSpec      map[string]any
	AcceptanceCriteria []string
	TestCases          []string
	GeneratedPrompt    string
}

// GenerateContracts turns completed stage data into a prioritized,
// dependency-linked contract set. Pure and deterministic: no storage or
// network access, and identical inputs produce the same titles, counts,
// dependency shape, and prompts. Only the freshly generated IDs differ
// between calls.
//
// Emission order fixes priorities: setup, db config, one model per entity,
// one api per endpoint tag, design tokens, shared components, one page per
// section, then integrations. Foundation contracts (setup, db config,
// design tokens, integrations) carry no dependencies and start ready;
// everything else starts backlog until the cascade unlocks it.
func GenerateContracts(stages StagePayloads, projectName string) []ContractDraft {
	var contracts []ContractDraft
	priority := 1

	emit := func(d ContractDraft) string {
		d.ID = uuid.NewString()
		d.Priority = priority
		priority++
		contracts = append(contracts, d)
		return d.ID
	}

	stackSelections := asMap(stages.Stack["selections"])

	setupID := emit(ContractDraft{
		Title:       fmt.Sprintf("Project Scaffold: %s", projectName),
		Type:        types.ContractTypeSetup,
		Description: "Initialize the project with the selected tech stack, install dependencies, and set up the folder structure.",
		UserStory:   "As a developer, I want a fully scaffolded project so I can start building features immediately.",
		Stack:       stackSelections,
		TargetFiles: []string{"package.json", "tsconfig.json", "src/"},
		Constraints: []string{"Follow the selected stack exactly", "Use recommended project structure for the chosen framework"},
		AcceptanceCriteria: []string{
			"Project initializes without errors",
			"All dependencies from stack selection are installed",
			"Folder structure matches framework conventions",
			"Dev server starts successfully",
		},
		TestCases: []string{"Run dev server and verify it starts", "Verify all deps are in package.json"},
	})

	dbConfigID := emit(ContractDraft{
		Title:       "Database & ORM Configuration",
		Type:        types.ContractTypeConfig,
		Description: "Set up the database connection, ORM configuration, and initial migration infrastructure.",
		UserStory:   "As a developer, I want the database layer configured so I can define and migrate data models.",
		Stack:       stackSelections,
		TargetFiles: []string{"src/db/", "drizzle.config.ts"},
		AcceptanceCriteria: []string{
			"Database connection is established",
			"ORM is configured with schema directory",
			"Migration infrastructure is in place",
		},
		TestCases: []string{"Verify DB connection with a simple query", "Run initial migration"},
	})

	// Models, one per entity. Entity order is preserved for deterministic
	// priorities and for the name-match passes below.
	type entityRef struct {
		name   string
		fields []any
	}
	var entityList []entityRef
	modelIDs := map[string]string{}
	var entityOrder []string
	for _, raw := range asSlice(stages.DataModel["entities"]) {
		entity := asMap(raw)
		name := asString(entity["name"])
		if name == "" {
			continue
		}
		entityList = append(entityList, entityRef{name: name, fields: asSlice(entity["fields"])})
	}
	for _, entity := range entityList {
		key := strings.ToLower(entity.name)
		modelID := emit(ContractDraft{
			Title:        fmt.Sprintf("Model: %s", entity.name),
			Type:         types.ContractTypeModel,
			Dependencies: []string{setupID, dbConfigID},
			Description:  fmt.Sprintf("Define the %s data model with its fields, relationships, and validation rules.", entity.name),
			UserStory:    fmt.Sprintf("As a developer, I want the %s model defined so I can store and query %s data.", entity.name, entity.name),
			Stack:        stackSelections,
			TargetFiles: []string{
				fmt.Sprintf("src/db/schema/%s.ts", key),
				fmt.Sprintf("src/models/%s.ts", key),
			},
			Constraints: []string{"Follow the entity definition exactly", "Include all specified fields and types"},
			Patterns:    []string{"Use ORM schema definition patterns"},
			DataModels:  []map[string]any{{"name": entity.name, "fields": entity.fields}},
			AcceptanceCriteria: []string{
				fmt.Sprintf("%s schema is defined with all fields", entity.name),
				"Migration runs without errors",
				"Type definitions are exported",
			},
			TestCases: []string{
				fmt.Sprintf("Create and retrieve a %s record", entity.name),
				fmt.Sprintf("Validate required fields on %s", entity.name),
			},
		})
		modelIDs[key] = modelID
		entityOrder = append(entityOrder, key)
	}

	// APIs, one per endpoint tag group, in first-seen tag order.
	type endpoint struct {
		raw    map[string]any
		path   string
		method string
	}
	var endpoints []endpoint
	for _, raw := range asSlice(stages.API["endpoints"]) {
		ep := asMap(raw)
		endpoints = append(endpoints, endpoint{raw: ep, path: asString(ep["path"]), method: asString(ep["method"])})
	}
	tagOrder := []string{}
	tagGroups := map[string][]endpoint{}
	for _, ep := range endpoints {
		tag := asString(ep.raw["tag"])
		if tag == "" {
			tag = "general"
		}
		if _, seen := tagGroups[tag]; !seen {
			tagOrder = append(tagOrder, tag)
		}
		tagGroups[tag] = append(tagGroups[tag], ep)
	}

	apiIDs := map[string]string{}
	var apiIDOrder []string
	for _, tag := range tagOrder {
		eps := tagGroups[tag]

		// Path segments reference models singular or plural, case-insensitively.
		deps := []string{setupID}
		for _, ep := range eps {
			for _, part := range pathSegments(ep.path) {
				if id, ok := modelIDs[singular(part)]; ok {
					deps = append(deps, id)
				}
				if id, ok := modelIDs[strings.ToLower(part)]; ok {
					deps = append(deps, id)
				}
			}
		}

		var epSummaries []string
		var epPayloads []map[string]any
		var criteria []string
		var testCases []string
		for _, ep := range eps {
			epSummaries = append(epSummaries, fmt.Sprintf("%s %s", ep.method, ep.path))
			epPayloads = append(epPayloads, map[string]any{
				"path":        ep.path,
				"method":      ep.method,
				"description": ep.raw["description"],
				"requestBody": ep.raw["requestBody"],
				"response":    ep.raw["response"],
			})
			criteria = append(criteria, fmt.Sprintf("%s %s returns correct response", ep.method, ep.path))
			testCases = append(testCases, fmt.Sprintf("Test %s %s with valid and invalid inputs", ep.method, ep.path))
		}

		apiID := emit(ContractDraft{
			Title:              fmt.Sprintf("API: %s", tag),
			Type:               types.ContractTypeAPI,
			Dependencies:       dedupe(deps),
			Description:        fmt.Sprintf("Implement the %s API endpoints: %s.", tag, strings.Join(epSummaries, ", ")),
			UserStory:          fmt.Sprintf("As a client, I want %s API endpoints so I can manage %s resources.", tag, tag),
			Stack:              stackSelections,
			TargetFiles:        []string{fmt.Sprintf("src/routes/%s.ts", strings.ToLower(tag))},
			Constraints:        []string{"Follow REST conventions", "Include proper error handling and validation"},
			Patterns:           []string{"Route handler pattern with validation"},
			APIEndpoints:       epPayloads,
			AcceptanceCriteria: criteria,
			TestCases:          testCases,
		})
		apiIDs[strings.ToLower(tag)] = apiID
		apiIDOrder = append(apiIDOrder, apiID)
	}

	designTokensID := emit(ContractDraft{
		Title:       "Design System Tokens",
		Type:        types.ContractTypeConfig,
		Description: "Set up the design system with color palette, typography scale, and spacing tokens.",
		UserStory:   "As a developer, I want a consistent design system so all UI components share the same visual language.",
		Stack:       stackSelections,
		TargetFiles: []string{"src/styles/tokens.css", "tailwind.config.ts", "src/lib/design-tokens.ts"},
		Constraints: []string{"Use CSS custom properties for runtime theming", "Integrate with Tailwind if selected"},
		Patterns:    []string{"Design token pattern"},
		DesignTokens: map[string]any{
			"colors":     stages.Design["colors"],
			"typography": stages.Design["typography"],
			"spacing":    stages.Design["spacing"],
		},
		AcceptanceCriteria: []string{
			"Color tokens are defined and accessible",
			"Typography scale is configured",
			"Spacing system is consistent",
		},
		TestCases: []string{"Verify tokens are applied to a sample component"},
	})

	// Shared components: referenced by two or more sections, in first-seen
	// order.
	type sectionRef struct {
		raw        map[string]any
		name       string
		components []map[string]any
	}
	var sectionList []sectionRef
	for _, raw := range asSlice(stages.Sections["sections"]) {
		section := asMap(raw)
		var comps []map[string]any
		for _, c := range asSlice(section["components"]) {
			comps = append(comps, asMap(c))
		}
		sectionList = append(sectionList, sectionRef{raw: section, name: asString(section["name"]), components: comps})
	}

	type componentRef struct {
		name string
		refs []string
		spec map[string]any
	}
	compOrder := []string{}
	compRefs := map[string]*componentRef{}
	for _, section := range sectionList {
		for _, comp := range section.components {
			name := asString(comp["name"])
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			ref, seen := compRefs[key]
			if !seen {
				ref = &componentRef{name: name, spec: comp}
				compRefs[key] = ref
				compOrder = append(compOrder, key)
			}
			ref.refs = append(ref.refs, section.name)
		}
	}

	componentIDs := map[string]string{}
	var componentIDOrder []string
	for _, key := range compOrder {
		comp := compRefs[key]
		if len(comp.refs) < 2 {
			continue
		}

		deps := []string{setupID, designTokensID}
		for _, entityKey := range entityOrder {
			matched := strings.Contains(key, entityKey)
			for _, sectionName := range comp.refs {
				if strings.Contains(strings.ToLower(sectionName), entityKey) {
					matched = true
				}
			}
			if matched {
				deps = append(deps, modelIDs[entityKey])
			}
		}

		compID := emit(ContractDraft{
			Title:        fmt.Sprintf("Component: %s", comp.name),
			Type:         types.ContractTypeComponent,
			Dependencies: dedupe(deps),
			Description:  fmt.Sprintf("Build the shared %s component used by: %s.", comp.name, strings.Join(comp.refs, ", ")),
			UserStory:    fmt.Sprintf("As a user, I want a reusable %s component for consistent UI across pages.", comp.name),
			Stack:        stackSelections,
			TargetFiles:  []string{fmt.Sprintf("src/components/%s.tsx", key)},
			Constraints:  []string{"Must be reusable across all referencing sections"},
			Patterns:     []string{"Component with typed props interface"},
			DesignTokens: map[string]any{
				"colors":     stages.Design["colors"],
				"typography": stages.Design["typography"],
			},
			ComponentSpec: comp.spec,
			AcceptanceCriteria: []string{
				fmt.Sprintf("%s renders correctly", comp.name),
				fmt.Sprintf("%s accepts and uses all defined props", comp.name),
				fmt.Sprintf("%s uses design tokens", comp.name),
			},
			TestCases: []string{
				fmt.Sprintf("Render %s with default props", comp.name),
				fmt.Sprintf("Render %s with all prop variants", comp.name),
			},
		})
		componentIDs[key] = compID
		componentIDOrder = append(componentIDOrder, compID)
	}

	// Pages, one per section.
	for _, section := range sectionList {
		deps := []string{setupID, designTokensID}
		deps = append(deps, componentIDOrder...)
		deps = append(deps, apiIDOrder...)

		var dataReqs []string
		for _, raw := range asSlice(section.raw["dataRequirements"]) {
			if s := asString(raw); s != "" {
				dataReqs = append(dataReqs, s)
			}
		}

		var pageModels []map[string]any
		for _, req := range dataReqs {
			for _, entity := range entityList {
				if strings.EqualFold(entity.name, req) {
					pageModels = append(pageModels, map[string]any{"name": entity.name, "fields": entity.fields})
				}
			}
		}

		var pageEndpoints []map[string]any
		for _, req := range dataReqs {
			reqKey := strings.ToLower(req)
			for _, ep := range endpoints {
				for _, part := range pathSegments(ep.path) {
					if singular(part) == reqKey {
						pageEndpoints = append(pageEndpoints, ep.raw)
						break
					}
				}
			}
		}

		route := asString(section.raw["route"])
		description := asString(section.raw["description"])
		sectionName := section.name
		if sectionName == "" {
			sectionName = "unnamed"
		}

		desc := fmt.Sprintf("Build the %s page", sectionName)
		if route != "" {
			desc += fmt.Sprintf(" at route %s", route)
		}
		desc += "."
		if description != "" {
			desc += " " + description
		}
		story := fmt.Sprintf("As a user, I want the %s page so I can access %s functionality.", sectionName, sectionName)
		if description != "" {
			story = fmt.Sprintf("As a user, I want the %s page so I can %s", sectionName, description)
		}

		routeCriterion := "Page is accessible via navigation"
		if route != "" {
			routeCriterion = fmt.Sprintf("Page is accessible at %s", route)
		}

		var componentSpec map[string]any
		if len(section.components) > 0 {
			componentSpec = map[string]any{"components": section.raw["components"]}
		}

		emit(ContractDraft{
			Title:         fmt.Sprintf("Page: %s", sectionName),
			Type:          types.ContractTypePage,
			Dependencies:  dedupe(deps),
			Description:   desc,
			UserStory:     story,
			Stack:         stackSelections,
			TargetFiles:   []string{fmt.Sprintf("src/pages/%s.tsx", slugify(sectionName))},
			Patterns:      []string{"Page component with data fetching"},
			DataModels:    pageModels,
			APIEndpoints:  pageEndpoints,
			DesignTokens:  map[string]any{"colors": stages.Design["colors"]},
			ComponentSpec: componentSpec,
			AcceptanceCriteria: []string{
				fmt.Sprintf("%s page renders correctly", sectionName),
				routeCriterion,
				"Data is fetched and displayed",
			},
			TestCases: []string{
				fmt.Sprintf("Render %s page", sectionName),
				fmt.Sprintf("Navigate to %s and verify content", sectionName),
			},
		})
	}

	// Integrations, one per detected infra concern.
	emitted := false
	if stages.Infrastructure["docker"] != nil {
		emitted = true
		emit(ContractDraft{
			Title:       "Integration: Docker",
			Type:        types.ContractTypeIntegration,
			Description: "Set up Docker containerization with Dockerfile and docker-compose configuration.",
			UserStory:   "As a developer, I want Docker configuration so I can run the app in containers.",
			Stack:       stackSelections,
			TargetFiles: []string{"Dockerfile", "docker-compose.yml", ".dockerignore"},
			Constraints: []string{"Use multi-stage builds for production", "Include health checks"},
			AcceptanceCriteria: []string{
				"Docker image builds successfully",
				"Container starts and serves the application",
				"docker-compose orchestrates all services",
			},
			TestCases: []string{"Build Docker image", "Run container and verify health check"},
		})
	}
	if stages.Infrastructure["cicd"] != nil {
		emitted = true
		emit(ContractDraft{
			Title:              "Integration: CI/CD Pipeline",
			Type:               types.ContractTypeIntegration,
			Description:        "Set up continuous integration and deployment pipeline.",
			UserStory:          "As a developer, I want CI/CD so code is automatically tested and deployed.",
			Stack:              stackSelections,
			TargetFiles:        []string{".github/workflows/ci.yml"},
			AcceptanceCriteria: []string{"CI pipeline runs on push", "Tests pass in CI", "Deployment triggers on main branch"},
			TestCases:          []string{"Push a commit and verify CI runs"},
		})
	}
	if stages.Infrastructure["env"] != nil {
		emitted = true
		emit(ContractDraft{
			Title:              "Integration: Environment Configuration",
			Type:               types.ContractTypeIntegration,
			Description:        "Set up environment variable management and configuration.",
			UserStory:          "As a developer, I want env configuration so the app works across environments.",
			Stack:              stackSelections,
			TargetFiles:        []string{".env.example", "src/config/env.ts"},
			Constraints:        []string{"Never commit actual secrets", "Validate env vars at startup"},
			DoNotTouch:         []string{".env"},
			AcceptanceCriteria: []string{".env.example documents all required vars", "App validates env on startup"},
			TestCases:          []string{"Start app with missing env var and verify error message"},
		})
	}
	if !emitted {
		emit(ContractDraft{
			Title:              "Integration: Infrastructure Setup",
			Type:               types.ContractTypeIntegration,
			Description:        "Set up infrastructure configuration based on the infrastructure design.",
			UserStory:          "As a developer, I want infrastructure configured for deployment.",
			Stack:              stackSelections,
			TargetFiles:        []string{},
			AcceptanceCriteria: []string{"Infrastructure is configured per design"},
			TestCases:          []string{"Verify infrastructure setup"},
		})
	}

	for i := range contracts {
		if len(contracts[i].Dependencies) == 0 {
			contracts[i].Status = types.ContractStatusReady
		} else {
			contracts[i].Status = types.ContractStatusBacklog
		}
	}
	for i := range contracts {
		contracts[i].GeneratedPrompt = renderTaskPrompt(contracts[i])
	}
	return contracts
}

// renderTaskPrompt serializes a contract into the XML-ish task prompt
// handed to an implementation agent. Same contract fields, same prompt.
func renderTaskPrompt(c ContractDraft) string {
	var lines []string
	push := func(s string) { lines = append(lines, s) }

	push("<contract>")
	push("  <task>")
	push(fmt.Sprintf("    <title>%s</title>", escapeXML(c.Title)))
	push(fmt.Sprintf("    <type>%s</type>", c.Type))
	if c.UserStory != "" {
		push(fmt.Sprintf("    <user_story>%s</user_story>", escapeXML(c.UserStory)))
	}
	if c.Description != "" {
		push(fmt.Sprintf("    <description>%s</description>", escapeXML(c.Description)))
	}
	push("  </task>")

	push("  <context>")
	if c.Stack != nil {
		push(fmt.Sprintf("    <stack>%s</stack>", escapeXML(compactJSON(c.Stack))))
	}
	if c.DataModels != nil {
		push(fmt.Sprintf("    <data_models>%s</data_models>", escapeXML(compactJSON(c.DataModels))))
	}
	if c.APIEndpoints != nil {
		push(fmt.Sprintf("    <api_endpoints>%s</api_endpoints>", escapeXML(compactJSON(c.APIEndpoints))))
	}
	if c.DesignTokens != nil {
		push(fmt.Sprintf("    <design_tokens>%s</design_tokens>", escapeXML(compactJSON(c.DesignTokens))))
	}
	push("  </context>")

	push("  <implementation>")
	if c.TargetFiles != nil {
		push(fmt.Sprintf("    <target_files>%s</target_files>", escapeXML(compactJSON(c.TargetFiles))))
	}
	if c.Patterns != nil {
		push(fmt.Sprintf("    <patterns>%s</patterns>", escapeXML(compactJSON(c.Patterns))))
	}
	if c.Constraints != nil {
		push(fmt.Sprintf("    <constraints>%s</constraints>", escapeXML(compactJSON(c.Constraints))))
	}
	if c.DoNotTouch != nil {
		push(fmt.Sprintf("    <do_not_touch>%s</do_not_touch>", escapeXML(compactJSON(c.DoNotTouch))))
	}
	push("  </implementation>")

	if c.ComponentSpec != nil {
		push(fmt.Sprintf("  <component_spec>%s</component_spec>", escapeXML(compactJSON(c.ComponentSpec))))
	}

	if len(c.AcceptanceCriteria) > 0 {
		push("  <acceptance_criteria>")
		for _, ac := range c.AcceptanceCriteria {
			push(fmt.Sprintf("    <criterion>%s</criterion>", escapeXML(ac)))
		}
		push("  </acceptance_criteria>")
	}

	if len(c.TestCases) > 0 {
		push("  <test_cases>")
		for _, tc := range c.TestCases {
			push(fmt.Sprintf("    <test>%s</test>", escapeXML(tc)))
		}
		push("  </test_cases>")
	}

	push("</contract>")
	return strings.Join(lines, "\n")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

func compactJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func pathSegments(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p == "" || strings.HasPrefix(p, ":") || strings.HasPrefix(p, "{") {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

func singular(s string) string {
	return strings.ToLower(strings.TrimSuffix(s, "s"))
}

func slugify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
