package types

import "encoding/json"

// AutomationConfig is stored as JSON on the project row and snapshotted onto
// each batch run at start time.
type AutomationConfig struct {
	TrustLevel   string       `json:"trustLevel"` // manual|semi_auto|full_auto
	QualityGates QualityGates `json:"qualityGates"`
	Boundaries   Boundaries   `json:"boundaries"`
	BatchLimits  BatchLimits  `json:"batchLimits"`
}

type QualityGates struct {
	Compiles      bool `json:"compiles"`
	TestsPass     bool `json:"testsPass"`
	LintClean     bool `json:"lintClean"`
	NoNewWarnings bool `json:"noNewWarnings"`
}

type Boundaries struct {
	ProtectEnvFiles    bool     `json:"protectEnvFiles"`
	ProtectConfigFiles bool     `json:"protectConfigFiles"`
	ProtectedPaths     []string `json:"protectedPaths"`
}

type BatchLimits struct {
	MaxTasks               int `json:"maxTasks"`
	MaxConsecutiveFailures int `json:"maxConsecutiveFailures"`
}

// QualityReport is the structured pass/fail outcome attached to a contract
// after an automated run. Nil booleans mean the gate was not evaluated.
type QualityReport struct {
	Compiles      *bool    `json:"compiles"`
	TestsPass     *bool    `json:"testsPass"`
	LintClean     *bool    `json:"lintClean"`
	NoNewWarnings *bool    `json:"noNewWarnings"`
	FilesChanged  []string `json:"filesChanged"`
	ChecksOutput  string   `json:"checksOutput,omitempty"`
	Passed        bool     `json:"passed"`
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		TrustLevel: "manual",
		QualityGates: QualityGates{
			Compiles:  true,
			TestsPass: true,
		},
		Boundaries: Boundaries{
			ProtectEnvFiles:    true,
			ProtectConfigFiles: true,
		},
		BatchLimits: BatchLimits{
			MaxTasks:               10,
			MaxConsecutiveFailures: 3,
		},
	}
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
