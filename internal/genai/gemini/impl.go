package gemini

import (
	"fmt"
	"time"

	"room-visualizer/common"
)

// NewGeminiClientFromConfig 从配置创建 Gemini 客户端
func NewGeminiClientFromConfig(cfg *common.Config) (*Client, error) {
	client, err := NewClient(Config{
		APIKey:    cfg.GeminiAPIKey,
		BaseURL:   cfg.GeminiBaseURL,
		ModelName: cfg.GeminiModel,
		Timeout:   time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
