package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/logger"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

type ProjectService interface {
	// CreateProject inserts the project row and seeds all nine stage rows in
	// one transaction: stage 1 active, the rest locked.
	CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*types.Project, error)
	GetProject(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]*types.Project, error)
	ArchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error)
	// Brief renders a markdown summary of the project's design from stage
	// data: product, stack, models, endpoints, design, sections.
	Brief(ctx context.Context, userID, projectID uuid.UUID) (string, error)
}

type projectService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	stageRepo   repos.StageRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo, stageRepo repos.StageRepo) ProjectService {
	return &projectService{
		db:          db,
		log:         baseLog.With("service", "ProjectService"),
		projectRepo: projectRepo,
		stageRepo:   stageRepo,
	}
}

func (s *projectService) CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*types.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.BadRequest("project name is required")
	}

	project := &types.Project{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Slug:         slugify(name),
		Description:  strings.TrimSpace(description),
		CurrentStage: 1,
		Status:       types.ProjectStatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.projectRepo.Create(ctx, tx, project); err != nil {
			return err
		}
		stages := make([]*types.Stage, 0, types.TotalStages)
		for _, cfg := range types.StageConfigs {
			status := types.StageStatusLocked
			if cfg.Number == 1 {
				status = types.StageStatusActive
			}
			stages = append(stages, &types.Stage{
				ID:          uuid.New(),
				ProjectID:   project.ID,
				StageNumber: cfg.Number,
				StageName:   cfg.Name,
				StageLabel:  cfg.Label,
				Status:      status,
			})
		}
		_, err := s.stageRepo.Create(ctx, tx, stages)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Project created", "project_id", project.ID, "user_id", userID)
	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetForUser(ctx, nil, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil || project.Status == types.ProjectStatusDeleted {
		return nil, apierr.NotFound("project not found")
	}
	return project, nil
}

func (s *projectService) ListProjects(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	return s.projectRepo.ListByUser(ctx, nil, userID)
}

func (s *projectService) ArchiveProject(ctx context.Context, userID, projectID uuid.UUID) (*types.Project, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if err := s.projectRepo.UpdateFields(ctx, nil, projectID,
		map[string]interface{}{"status": types.ProjectStatusArchived}); err != nil {
		return nil, err
	}
	return s.projectRepo.GetForUser(ctx, nil, projectID, userID)
}

func (s *projectService) Brief(ctx context.Context, userID, projectID uuid.UUID) (string, error) {
	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return "", err
	}
	stages, err := s.stageRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return "", err
	}

	data := map[string]map[string]any{}
	for _, st := range stages {
		if len(st.Data) == 0 {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(st.Data, &payload); err != nil {
			continue
		}
		data[st.StageName] = payload
	}

	product := data[types.StageNameProduct]
	var lines []string
	push := func(s string) { lines = append(lines, s) }

	title := asString(product["name"])
	if title == "" {
		title = project.Name
	}
	push("# " + title)
	push("")

	if desc := asString(product["description"]); desc != "" {
		push(desc)
		push("")
	}

	if features := asSlice(product["features"]); len(features) > 0 {
		push("## Features")
		for _, raw := range features {
			f := asMap(raw)
			push(fmt.Sprintf("- **%s**: %s", asString(f["name"]), asString(f["description"])))
		}
		push("")
	}

	if selections := asMap(data[types.StageNameStack]["selections"]); len(selections) > 0 {
		push("## Tech Stack")
		keys := make([]string, 0, len(selections))
		for k := range selections {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			push(fmt.Sprintf("- **%s**: %s", k, asString(selections[k])))
		}
		push("")
	}

	if entities := asSlice(data[types.StageNameDataModel]["entities"]); len(entities) > 0 {
		push("## Data Models")
		for _, raw := range entities {
			push("- " + asString(asMap(raw)["name"]))
		}
		push("")
	}

	if endpoints := asSlice(data[types.StageNameAPI]["endpoints"]); len(endpoints) > 0 {
		push("## API Endpoints")
		for _, raw := range endpoints {
			ep := asMap(raw)
			push(fmt.Sprintf("- `%s %s`", asString(ep["method"]), asString(ep["path"])))
		}
		push("")
	}

	if design := data[types.StageNameDesign]; len(design) > 0 {
		var keys []string
		for k, v := range design {
			if v != nil {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			push("## Design Tokens")
			push("Defined: " + strings.Join(keys, ", "))
			push("")
		}
	}

	if sections := asSlice(data[types.StageNameSections]["sections"]); len(sections) > 0 {
		push("## Pages / Sections")
		for _, raw := range sections {
			section := asMap(raw)
			entry := "- **" + asString(section["name"]) + "**"
			if route := asString(section["route"]); route != "" {
				entry += fmt.Sprintf(" (`%s`)", route)
			}
			push(entry)
		}
		push("")
	}

	return strings.Join(lines, "\n"), nil
}
