package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

// ExportFormatJSON is the only package format currently produced.
const ExportFormatJSON = "json"

type ExportService interface {
	// ExportProject assembles the full design package (stage data plus
	// contracts), uploads the artifact, and records an export row. Requires
	// all eight generative stages complete.
	ExportProject(ctx context.Context, userID, projectID uuid.UUID) (*types.ExportPackage, error)
	ListExports(ctx context.Context, projectID uuid.UUID) ([]*types.ExportPackage, error)
}

type exportService struct {
	log          *logger.Logger
	projectRepo  repos.ProjectRepo
	stageRepo    repos.StageRepo
	contractRepo repos.ContractRepo
	exportRepo   repos.ExportPackageRepo
	bucket       BucketService
}

func NewExportService(
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	stageRepo repos.StageRepo,
	contractRepo repos.ContractRepo,
	exportRepo repos.ExportPackageRepo,
	bucket BucketService,
) ExportService {
	return &exportService{
		log:          baseLog.With("service", "ExportService"),
		projectRepo:  projectRepo,
		stageRepo:    stageRepo,
		contractRepo: contractRepo,
		exportRepo:   exportRepo,
		bucket:       bucket,
	}
}

type exportDocument struct {
	Project    exportProjectMeta          `json:"project"`
	Stages     map[string]json.RawMessage `json:"stages"`
	Contracts  []*types.Contract          `json:"contracts"`
	ExportedAt time.Time                  `json:"exported_at"`
}

type exportProjectMeta struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
}

func (s *exportService) ExportProject(ctx context.Context, userID, projectID uuid.UUID) (*types.ExportPackage, error) {
	project, err := s.projectRepo.GetForUser(ctx, nil, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apierr.NotFound("project not found")
	}

	stages, err := s.stageRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*types.Stage, len(stages))
	for _, st := range stages {
		byName[st.StageName] = st
	}

	var messages []string
	stageData := map[string]json.RawMessage{}
	for _, name := range types.GenerativeStageNames {
		st := byName[name]
		if st == nil || st.Status != types.StageStatusComplete {
			return nil, apierr.BadStatus("stage %q must be complete before export", name)
		}
		if len(st.Data) == 0 {
			messages = append(messages, fmt.Sprintf("stage %q is complete but has no data", name))
			continue
		}
		stageData[name] = json.RawMessage(st.Data)
	}

	contracts, err := s.contractRepo.ListByProject(ctx, nil, projectID, nil)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		messages = append(messages, "no contracts generated yet")
	}

	doc := exportDocument{
		Project: exportProjectMeta{
			ID:          project.ID,
			Name:        project.Name,
			Slug:        project.Slug,
			Description: project.Description,
		},
		Stages:     stageData,
		Contracts:  contracts,
		ExportedAt: time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	exportID := uuid.New()
	key := fmt.Sprintf("projects/%s/exports/%s.json", projectID, exportID)
	if err := s.bucket.UploadFile(ctx, key, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("upload export artifact: %w", err)
	}

	status := types.ExportValidationValid
	var messagesJSON datatypes.JSON
	if len(messages) > 0 {
		status = types.ExportValidationWarnings
		encoded, mErr := json.Marshal(messages)
		if mErr != nil {
			return nil, mErr
		}
		messagesJSON = datatypes.JSON(encoded)
	}

	pkg := &types.ExportPackage{
		ID:                 exportID,
		ProjectID:          projectID,
		Format:             ExportFormatJSON,
		ValidationStatus:   status,
		ValidationMessages: messagesJSON,
		FilePath:           key,
		FileSizeBytes:      int64(len(raw)),
		ExportedAt:         doc.ExportedAt,
	}
	if _, err := s.exportRepo.Create(ctx, nil, pkg); err != nil {
		return nil, err
	}
	s.log.Info("Project exported", "project_id", projectID, "export_id", exportID, "bytes", len(raw))
	return pkg, nil
}

func (s *exportService) ListExports(ctx context.Context, projectID uuid.UUID) ([]*types.ExportPackage, error) {
	return s.exportRepo.ListByProject(ctx, nil, projectID)
}
