package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/repos"
	"github.com/designos/designos-backend/internal/types"
)

type fakeBucket struct {
	objects map[string][]byte
	err     error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) GetPublicURL(key string) string {
	return "https://storage.example.com/" + key
}

func newExportService(env *testEnv, bucket BucketService) ExportService {
	exportRepo := repos.NewExportPackageRepo(env.db, env.log)
	return NewExportService(env.log, env.projectRepo, env.stageRepo, env.contractRepo, exportRepo, bucket)
}

func TestExportProject_RequiresCompleteStages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	project := env.createProject(t, userID)
	svc := newExportService(env, newFakeBucket())

	_, err := svc.ExportProject(ctx, userID, project.ID)
	if !apierr.Is(err, apierr.CodeBadStatus) {
		t.Fatalf("expected BAD_STATUS, got %v", err)
	}
}

func TestExportProject_WrongUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.createProject(t, uuid.New())
	env.completeAllGenerativeStages(t, project.ID)
	svc := newExportService(env, newFakeBucket())

	_, err := svc.ExportProject(ctx, uuid.New(), project.ID)
	if !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestExportProject_UploadsArtifactAndRecordsPackage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	project := env.createProject(t, userID)
	env.completeAllGenerativeStages(t, project.ID)
	if _, err := env.contracts.RegenerateContracts(ctx, project.ID); err != nil {
		t.Fatalf("generate contracts: %v", err)
	}
	bucket := newFakeBucket()
	svc := newExportService(env, bucket)

	pkg, err := svc.ExportProject(ctx, userID, project.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if pkg.Format != ExportFormatJSON {
		t.Fatalf("format = %q", pkg.Format)
	}
	if pkg.ValidationStatus != types.ExportValidationValid {
		t.Fatalf("validation status = %q", pkg.ValidationStatus)
	}
	wantKey := fmt.Sprintf("projects/%s/exports/%s.json", project.ID, pkg.ID)
	if pkg.FilePath != wantKey {
		t.Fatalf("file path = %q, want %q", pkg.FilePath, wantKey)
	}

	raw, ok := bucket.objects[wantKey]
	if !ok {
		t.Fatalf("artifact not uploaded at %q", wantKey)
	}
	if pkg.FileSizeBytes != int64(len(raw)) {
		t.Fatalf("file size = %d, artifact = %d", pkg.FileSizeBytes, len(raw))
	}

	var doc struct {
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
		Stages    map[string]json.RawMessage `json:"stages"`
		Contracts []json.RawMessage          `json:"contracts"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("parse artifact: %v", err)
	}
	if doc.Project.Name != project.Name {
		t.Fatalf("artifact project name = %q", doc.Project.Name)
	}
	if len(doc.Stages) != len(types.GenerativeStageNames) {
		t.Fatalf("artifact has %d stages", len(doc.Stages))
	}
	if len(doc.Contracts) == 0 {
		t.Fatalf("artifact has no contracts")
	}

	exports, err := svc.ListExports(ctx, project.ID)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(exports) != 1 || exports[0].ID != pkg.ID {
		t.Fatalf("expected one recorded export, got %d", len(exports))
	}
}

func TestExportProject_EmptyStageDataProducesWarnings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	project := env.createProject(t, userID)
	env.completeAllGenerativeStages(t, project.ID)
	// Leave the design stage complete but dataless, and generate no contracts.
	env.db.Model(&types.Stage{}).
		Where("project_id = ? AND stage_name = ?", project.ID, types.StageNameDesign).
		Update("data", nil)
	svc := newExportService(env, newFakeBucket())

	pkg, err := svc.ExportProject(ctx, userID, project.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if pkg.ValidationStatus != types.ExportValidationWarnings {
		t.Fatalf("validation status = %q", pkg.ValidationStatus)
	}
	var messages []string
	if err := json.Unmarshal(pkg.ValidationMessages, &messages); err != nil {
		t.Fatalf("parse messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %v", messages)
	}
	var sawStage, sawContracts bool
	for _, m := range messages {
		if strings.Contains(m, types.StageNameDesign) {
			sawStage = true
		}
		if strings.Contains(m, "contracts") {
			sawContracts = true
		}
	}
	if !sawStage || !sawContracts {
		t.Fatalf("messages = %v", messages)
	}
}

func TestExportProject_UploadFailureRecordsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	project := env.createProject(t, userID)
	env.completeAllGenerativeStages(t, project.ID)
	bucket := newFakeBucket()
	bucket.err = fmt.Errorf("bucket unavailable")
	svc := newExportService(env, bucket)

	if _, err := svc.ExportProject(ctx, userID, project.ID); err == nil {
		t.Fatalf("expected upload error")
	}
	exports, err := svc.ListExports(ctx, project.ID)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(exports) != 0 {
		t.Fatalf("export row recorded despite upload failure")
	}
}

func TestListExports_NewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	project := env.createProject(t, userID)
	env.completeAllGenerativeStages(t, project.ID)
	svc := newExportService(env, newFakeBucket())

	first, err := svc.ExportProject(ctx, userID, project.ID)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, err := svc.ExportProject(ctx, userID, project.ID)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}

	exports, err := svc.ListExports(ctx, project.ID)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(exports))
	}
	if exports[0].ID != second.ID || exports[1].ID != first.ID {
		t.Fatalf("exports not ordered newest first")
	}
	if exports[0].ExportedAt.Before(exports[1].ExportedAt) {
		t.Fatalf("exported_at ordering inverted")
	}
}
