package grok

import (
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers"
	"github.com/gruzilkin/urmom-bot-sub000/llm/providers/openaicompat"
	"go.uber.org/zap"
)

const (
	// xAI 的官方 API 入口，Grok 走 OpenAI Chat Completions 兼容表面。
	defaultBaseURL = "https://api.x.ai"

	// 未配置模型时的兜底模型 id。
	fallbackModel = "grok-beta"
)

// GrokProvider 是 GENERAL 路由 ai_backend=grok 的后端：
// 一层针对 xAI 入口配置好的 openaicompat.Provider。
type GrokProvider struct {
	*openaicompat.Provider
}

// NewGrokProvider 按配置构建 Grok 后端；BaseURL 留空时指向 xAI 官方入口。
func NewGrokProvider(cfg providers.GrokConfig, logger *zap.Logger) *GrokProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GrokProvider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "grok",
			APIKey:        cfg.APIKey,
			BaseURL:       baseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: fallbackModel,
			Timeout:       cfg.Timeout,
		}, logger),
	}
}
