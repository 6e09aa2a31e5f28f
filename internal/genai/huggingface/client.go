package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"room-visualizer/common"
)

const providerName = "huggingface"

const defaultSegmentTimeout = 120 * time.Second

// Client 调用 Hugging Face Inference API 上的图像分割模型。
//
// 模型既可能直接返回蒙版图片，也可能返回分段列表：
//
//	[{"label": "floor", "score": 0.98, "mask": "<base64 png>"}, ...]
//
// 后者按 label 选取对应的蒙版。
type Client struct {
	httpClient *http.Client
	url        string
	token      string
	label      string
}

// Config 分割客户端配置
type Config struct {
	URL     string // 模型推理地址
	Token   string // Hugging Face Access Token
	Label   string // 分段列表中需要的标签，默认 floor
	Timeout time.Duration
}

// NewClient 创建分割客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("segmentation URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("huggingface token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSegmentTimeout
	}
	label := cfg.Label
	if label == "" {
		label = "floor"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		token:      cfg.Token,
		label:      label,
	}, nil
}

// NewHuggingFaceClientFromConfig 从通用配置创建客户端
func NewHuggingFaceClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		URL:     cfg.SegmentationURL,
		Token:   cfg.HuggingFaceToken,
		Label:   cfg.SegmentationLabel,
		Timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	})
}

// Segment 发送原始图片字节，返回蒙版图片字节
func (c *Client) Segment(ctx context.Context, image []byte) ([]byte, error) {
	common.WithFields(map[string]interface{}{
		"endpoint":   c.url,
		"image_size": len(image),
	}).Debug("Requesting floor mask")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.UpstreamError{Provider: providerName, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		common.WithFields(map[string]interface{}{
			"status_code": resp.StatusCode,
			"url":         c.url,
			"body":        common.TruncateForLog(string(body), 512),
		}).Error("Segmentation API returned non-success status")
		return nil, &common.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return c.extractMask(resp.Header.Get("Content-Type"), body)
}

// segment Hugging Face image-segmentation 任务的返回项
type segment struct {
	Label string   `json:"label"`
	Score *float64 `json:"score"`
	Mask  string   `json:"mask"`
}

// extractMask 识别响应格式并取出蒙版
func (c *Client) extractMask(contentType string, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, &common.UpstreamError{Provider: providerName, Body: "empty response body"}
	}

	if strings.HasPrefix(contentType, "application/json") {
		return c.maskFromSegments(body)
	}
	if strings.HasPrefix(contentType, "image/") {
		return body, nil
	}
	if strings.HasPrefix(http.DetectContentType(body), "image/") {
		return body, nil
	}
	return nil, &common.UpstreamError{
		Provider: providerName,
		Body:     fmt.Sprintf("unexpected response content type %q", contentType),
	}
}

func (c *Client) maskFromSegments(body []byte) ([]byte, error) {
	var segments []segment
	if err := json.Unmarshal(body, &segments); err != nil {
		return nil, &common.UpstreamError{Provider: providerName, Body: string(body), Err: fmt.Errorf("failed to parse segments: %w", err)}
	}

	for _, s := range segments {
		if !strings.EqualFold(s.Label, c.label) {
			continue
		}
		mask, err := base64.StdEncoding.DecodeString(s.Mask)
		if err != nil {
			return nil, &common.UpstreamError{Provider: providerName, Err: fmt.Errorf("failed to decode %s mask: %w", s.Label, err)}
		}
		return mask, nil
	}

	labels := make([]string, 0, len(segments))
	for _, s := range segments {
		labels = append(labels, s.Label)
	}
	return nil, &common.UpstreamError{
		Provider: providerName,
		Body:     fmt.Sprintf("no %q segment in response (labels: %s)", c.label, strings.Join(labels, ", ")),
	}
}
