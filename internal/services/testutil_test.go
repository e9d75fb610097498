package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Project{},
		&types.Stage{},
		&types.StageOutput{},
		&types.Generation{},
		&types.AIProviderConfig{},
		&types.Contract{},
		&types.ContractEvent{},
		&types.BatchRun{},
		&types.ExportPackage{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db  *gorm.DB
	log *logger.Logger

	projectRepo  repos.ProjectRepo
	stageRepo    repos.StageRepo
	outputRepo   repos.StageOutputRepo
	genRepo      repos.GenerationRepo
	providerRepo repos.AIProviderConfigRepo
	contractRepo repos.ContractRepo
	eventRepo    repos.ContractEventRepo
	batchRepo    repos.BatchRunRepo

	projects   ProjectService
	stages     StageService
	contracts  ContractService
	automation AutomationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	log := testLogger()

	env := &testEnv{
		db:           db,
		log:          log,
		projectRepo:  repos.NewProjectRepo(db, log),
		stageRepo:    repos.NewStageRepo(db, log),
		outputRepo:   repos.NewStageOutputRepo(db, log),
		genRepo:      repos.NewGenerationRepo(db, log),
		providerRepo: repos.NewAIProviderConfigRepo(db, log),
		contractRepo: repos.NewContractRepo(db, log),
		eventRepo:    repos.NewContractEventRepo(db, log),
		batchRepo:    repos.NewBatchRunRepo(db, log),
	}
	env.projects = NewProjectService(db, log, env.projectRepo, env.stageRepo)
	env.stages = NewStageService(db, log, env.stageRepo, env.outputRepo, env.genRepo, env.projectRepo)
	env.contracts = NewContractService(db, log, env.contractRepo, env.eventRepo, env.stageRepo, env.projectRepo)
	env.automation = NewAutomationService(db, log, env.projectRepo, env.contractRepo, env.batchRepo, env.contracts)
	return env
}

func (e *testEnv) createProject(t *testing.T, userID uuid.UUID) *types.Project {
	t.Helper()
	project, err := e.projects.CreateProject(context.Background(), userID, "Test Project", "a test project")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func (e *testEnv) stageByNumber(t *testing.T, projectID uuid.UUID, number int) *types.Stage {
	t.Helper()
	stage, err := e.stageRepo.GetByProjectAndNumber(context.Background(), nil, projectID, number)
	if err != nil {
		t.Fatalf("get stage %d: %v", number, err)
	}
	if stage == nil {
		t.Fatalf("stage %d missing", number)
	}
	return stage
}

func (e *testEnv) setStageStatus(t *testing.T, projectID uuid.UUID, number int, status string) {
	t.Helper()
	stage := e.stageByNumber(t, projectID, number)
	if err := e.stageRepo.UpdateFields(context.Background(), nil, stage.ID,
		map[string]interface{}{"status": status}); err != nil {
		t.Fatalf("set stage %d status: %v", number, err)
	}
}

// completeAllGenerativeStages marks stages 1-8 complete with minimal valid
// payloads so the contract builder has inputs.
func (e *testEnv) completeAllGenerativeStages(t *testing.T, projectID uuid.UUID) {
	t.Helper()
	for _, cfg := range types.StageConfigs {
		if cfg.Name == types.StageNameExport {
			continue
		}
		stage := e.stageByNumber(t, projectID, cfg.Number)
		payload, err := json.Marshal(map[string]any{"stage": cfg.Name})
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		if err := e.stageRepo.UpdateFields(context.Background(), nil, stage.ID, map[string]interface{}{
			"status": types.StageStatusComplete,
			"data":   datatypes.JSON(payload),
		}); err != nil {
			t.Fatalf("complete stage %d: %v", cfg.Number, err)
		}
	}
}

func (e *testEnv) insertContract(t *testing.T, projectID uuid.UUID, title, status string, priority int, deps []string) *types.Contract {
	t.Helper()
	depsRaw, err := json.Marshal(deps)
	if err != nil {
		t.Fatalf("marshal deps: %v", err)
	}
	contract := &types.Contract{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Title:        title,
		Type:         types.ContractTypeSetup,
		Priority:     priority,
		Status:       status,
		Dependencies: datatypes.JSON(depsRaw),
	}
	if _, err := e.contractRepo.CreateBatch(context.Background(), nil, []*types.Contract{contract}); err != nil {
		t.Fatalf("insert contract: %v", err)
	}
	return contract
}
