package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/designos/designos-backend/internal/apierr"
	"github.com/designos/designos-backend/internal/types"
	"github.com/designos/designos-backend/internal/utils"
)

func newProviderService(t *testing.T, env *testEnv) ProviderService {
	t.Helper()
	t.Setenv("ENCRYPTION_KEY", "test-encryption-key-0123456789abcdef")
	return NewProviderService(env.log, env.providerRepo)
}

func TestCreateProvider_EncryptsKeyAtRest(t *testing.T) {
	env := newTestEnv(t)
	svc := newProviderService(t, env)
	ctx := context.Background()
	userID := uuid.New()

	cfg, err := svc.CreateProvider(ctx, userID, CreateProviderInput{
		Provider:     types.ProviderAnthropic,
		APIKey:       "sk-ant-secret",
		DefaultModel: "claude-sonnet-4",
		IsDefault:    true,
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if cfg.APIKeyEncrypted == "sk-ant-secret" {
		t.Fatalf("api key stored in plaintext")
	}
	plain, err := utils.Decrypt(cfg.APIKeyEncrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "sk-ant-secret" {
		t.Fatalf("round trip = %q", plain)
	}
	if cfg.Label != types.ProviderAnthropic {
		t.Fatalf("label default = %q", cfg.Label)
	}
}

func TestCreateProvider_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := newProviderService(t, env)
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name  string
		input CreateProviderInput
	}{
		{"unsupported provider", CreateProviderInput{Provider: "watson", APIKey: "k", DefaultModel: "m"}},
		{"missing api key", CreateProviderInput{Provider: types.ProviderOpenAI, DefaultModel: "m"}},
		{"missing model", CreateProviderInput{Provider: types.ProviderOpenAI, APIKey: "k"}},
		{"custom without base url", CreateProviderInput{Provider: types.ProviderCustom, APIKey: "k", DefaultModel: "m"}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateProvider(ctx, userID, tc.input); !apierr.Is(err, apierr.CodeBadRequest) {
			t.Fatalf("%s: expected BAD_REQUEST, got %v", tc.name, err)
		}
	}
}

func TestCreateProvider_TrimsBaseURLSlash(t *testing.T) {
	env := newTestEnv(t)
	svc := newProviderService(t, env)

	cfg, err := svc.CreateProvider(context.Background(), uuid.New(), CreateProviderInput{
		Provider:     types.ProviderCustom,
		APIKey:       "k",
		DefaultModel: "m",
		BaseURL:      "https://llm.internal/v1/",
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if cfg.BaseURL != "https://llm.internal/v1" {
		t.Fatalf("base url = %q", cfg.BaseURL)
	}
}

func TestDeleteProvider_ScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := newProviderService(t, env)
	ctx := context.Background()
	owner := uuid.New()

	cfg, err := svc.CreateProvider(ctx, owner, CreateProviderInput{
		Provider:     types.ProviderOpenAI,
		APIKey:       "k",
		DefaultModel: "gpt-4o",
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}

	if err := svc.DeleteProvider(ctx, uuid.New(), cfg.ID); !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for other user, got %v", err)
	}
	if err := svc.DeleteProvider(ctx, owner, cfg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	remaining, err := svc.ListProviders(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("provider still listed after delete")
	}
}
