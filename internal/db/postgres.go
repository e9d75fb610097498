package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/types"
	"github.com/designos/designos-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "designos", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Project{},
		&types.Stage{},
		&types.StageOutput{},
		&types.Generation{},
		&types.AIProviderConfig{},
		&types.Contract{},
		&types.ContractEvent{},
		&types.BatchRun{},
		&types.ExportPackage{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []string{
		`ALTER TABLE "stage" ADD CONSTRAINT "fk_stage_project_id" FOREIGN KEY ("project_id") REFERENCES "project"("id") ON DELETE CASCADE`,
		`ALTER TABLE "stage_output" ADD CONSTRAINT "fk_stage_output_stage_id" FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
		`ALTER TABLE "generation" ADD CONSTRAINT "fk_generation_stage_id" FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
		`ALTER TABLE "contract" ADD CONSTRAINT "fk_contract_project_id" FOREIGN KEY ("project_id") REFERENCES "project"("id") ON DELETE CASCADE`,
		`ALTER TABLE "contract_event" ADD CONSTRAINT "fk_contract_event_contract_id" FOREIGN KEY ("contract_id") REFERENCES "contract"("id") ON DELETE CASCADE`,
		`ALTER TABLE "batch_run" ADD CONSTRAINT "fk_batch_run_project_id" FOREIGN KEY ("project_id") REFERENCES "project"("id") ON DELETE CASCADE`,
		`ALTER TABLE "export_package" ADD CONSTRAINT "fk_export_package_project_id" FOREIGN KEY ("project_id") REFERENCES "project"("id") ON DELETE CASCADE`,
	}
	for _, c := range constraints {
		if err := s.db.Exec(c).Error; err != nil {
			// Re-running migrations hits "already exists"; not fatal.
			s.log.Debug("Constraint not applied", "error", err)
		}
	}
	return nil
}
