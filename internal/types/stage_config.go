package types

// Stage names, in pipeline order. The final export stage has no generation
// step; the other eight are the generative stages consumed by the contract
// builder.
const (
	StageNameProduct        = "product"
	StageNameDataModel      = "dataModel"
	StageNameDatabase       = "database"
	StageNameAPI            = "api"
	StageNameStack          = "stack"
	StageNameDesign         = "design"
	StageNameSections       = "sections"
	StageNameInfrastructure = "infrastructure"
	StageNameExport         = "export"
)

const TotalStages = 9

type StageConfig struct {
	Number      int
	Name        string
	Label       string
	Description string
}

var StageConfigs = []StageConfig{
	{Number: 1, Name: StageNameProduct, Label: "Product Definition", Description: "Define your product idea, features, and target audience"},
	{Number: 2, Name: StageNameDataModel, Label: "Data Model", Description: "Design entities, fields, and relationships"},
	{Number: 3, Name: StageNameDatabase, Label: "Database", Description: "Select database engine and generate schema"},
	{Number: 4, Name: StageNameAPI, Label: "API Design", Description: "Define endpoints, authentication, and request/response schemas"},
	{Number: 5, Name: StageNameStack, Label: "Tech Stack", Description: "Choose frameworks, libraries, and project structure"},
	{Number: 6, Name: StageNameDesign, Label: "Design System", Description: "Configure colors, typography, spacing, and component tokens"},
	{Number: 7, Name: StageNameSections, Label: "Sections", Description: "Define UI sections and component trees"},
	{Number: 8, Name: StageNameInfrastructure, Label: "Infrastructure", Description: "Configure hosting, Docker, CI/CD, and environment variables"},
	{Number: 9, Name: StageNameExport, Label: "Export", Description: "Preview and download your design package"},
}

// GenerativeStageNames are the eight stages whose completed data feeds the
// contract builder, in stage order.
var GenerativeStageNames = []string{
	StageNameProduct,
	StageNameDataModel,
	StageNameDatabase,
	StageNameAPI,
	StageNameStack,
	StageNameDesign,
	StageNameSections,
	StageNameInfrastructure,
}

func StageConfigByNumber(number int) (StageConfig, bool) {
	for _, c := range StageConfigs {
		if c.Number == number {
			return c, true
		}
	}
	return StageConfig{}, false
}

func StageConfigByName(name string) (StageConfig, bool) {
	for _, c := range StageConfigs {
		if c.Name == name {
			return c, true
		}
	}
	return StageConfig{}, false
}
