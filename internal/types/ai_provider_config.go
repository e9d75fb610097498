package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderDeepSeek   = "deepseek"
	ProviderKimi       = "kimi"
	ProviderCustom     = "custom"
)

type AIProviderConfig struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider        string    `gorm:"column:provider;not null" json:"provider"` // anthropic|openai|openrouter|deepseek|kimi|custom
	Label           string    `gorm:"column:label;not null" json:"label"`
	APIKeyEncrypted string    `gorm:"column:api_key_encrypted;not null" json:"-"`
	DefaultModel    string    `gorm:"column:default_model;not null" json:"default_model"`
	BaseURL         string    `gorm:"column:base_url" json:"base_url,omitempty"`
	IsDefault       bool      `gorm:"column:is_default;not null;default:false" json:"is_default"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (AIProviderConfig) TableName() string { return "ai_provider_config" }
