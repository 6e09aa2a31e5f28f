package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"room-visualizer/common"
	"room-visualizer/internal/utils"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const providerName = "openai"

const defaultOpenAITimeout = 120 * time.Second

// Client 通过 Responses API 调用 OpenAI 视觉模型
type Client struct {
	client openai.Client
	model  string
}

// Config OpenAI 客户端配置
type Config struct {
	APIKey  string
	BaseURL string // 为空时使用官方地址
	Model   string // 例如 gpt-4o
	Timeout time.Duration
}

// NewClient 创建 OpenAI 视觉客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		// 上游失败直接返回，不做重试
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// NewOpenAIClientFromConfig 从通用配置创建客户端
func NewOpenAIClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	})
}

// Describe 以 data URI 形式附带图片，返回模型输出的文本
func (c *Client) Describe(ctx context.Context, image []byte, mimeType string, instruction string) (string, error) {
	common.WithFields(map[string]interface{}{
		"model":      c.model,
		"mime_type":  mimeType,
		"image_size": len(image),
	}).Debug("Requesting room description from OpenAI")

	resp, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(
					responses.ResponseInputMessageContentListParam{
						{
							OfInputText: &responses.ResponseInputTextParam{
								Text: instruction,
							},
						},
						{
							OfInputImage: &responses.ResponseInputImageParam{
								Detail:   responses.ResponseInputImageDetailAuto,
								ImageURL: openai.String(utils.EncodeDataURI(mimeType, image)),
							},
						},
					},
					responses.EasyInputMessageRoleUser,
				),
			},
		},
	})
	if err != nil {
		upstream := &common.UpstreamError{Provider: providerName, Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			upstream.StatusCode = apiErr.StatusCode
			upstream.Body = err.Error()
		}
		return "", upstream
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", &common.UpstreamError{Provider: providerName, Body: "no text in response"}
	}
	return text, nil
}
