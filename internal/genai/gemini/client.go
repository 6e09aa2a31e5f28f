package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"room-visualizer/common"

	"google.golang.org/genai"
)

const providerName = "gemini"

// 默认请求超时时间
const defaultGenAITimeout = 120 * time.Second

// Client Gemini 客户端实现
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    string        // API Key
	BaseURL   string        // 自定义 Base URL，如果为空则使用默认值
	ModelName string        // 模型名称，例如：gemini-2.0-flash
	Timeout   time.Duration // 请求超时时间
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenAITimeout
	}

	return &Client{
		client:  client,
		model:   cfg.ModelName,
		timeout: timeout,
	}, nil
}

// Describe 将图片与指令一起发送给 Gemini，返回纯文本结果
func (c *Client) Describe(ctx context.Context, image []byte, mimeType string, instruction string) (string, error) {
	common.WithFields(map[string]interface{}{
		"model":      c.model,
		"mime_type":  mimeType,
		"image_size": len(image),
	}).Debug("Requesting room description from Gemini")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		{
			InlineData: &genai.Blob{
				Data:     image,
				MIMEType: mimeType,
			},
		},
		{Text: instruction},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, nil)
	if err != nil {
		return "", &common.UpstreamError{Provider: providerName, Err: err}
	}

	text, err := extractText(result)
	if err != nil {
		return "", err
	}

	common.WithFields(map[string]interface{}{
		"model":  c.model,
		"length": len(text),
	}).Debug("Gemini description received")

	return text, nil
}

// extractText 拼接第一个候选中的所有文本片段
func extractText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return "", &common.UpstreamError{Provider: providerName, Body: "no candidates in response"}
	}

	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != "" && candidate.FinishReason != genai.FinishReasonStop {
			return "", &common.UpstreamError{
				Provider: providerName,
				Body:     fmt.Sprintf("generation stopped: %s", candidate.FinishReason),
			}
		}
		return "", &common.UpstreamError{Provider: providerName, Body: "no content in candidate"}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &common.UpstreamError{Provider: providerName, Body: "no text in response"}
	}
	return text, nil
}

// Close genai.Client 不需要显式关闭
func (c *Client) Close() error {
	return nil
}
