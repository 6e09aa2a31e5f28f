package stability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"room-visualizer/common"
	"room-visualizer/internal/utils"
)

const providerName = "stability"

const defaultInpaintTimeout = 120 * time.Second

// InpaintRequest 局部重绘请求
type InpaintRequest struct {
	Image         []byte
	ImageMimeType string
	Mask          []byte
	Prompt        string
	OutputFormat  string // png、jpeg 或 webp，默认 png
}

// Client Stability AI stable-image/edit/inpaint 客户端
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// Config 客户端配置
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewClient 创建 Stability 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stability URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stability API key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultInpaintTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
	}, nil
}

// NewStabilityClientFromConfig 从通用配置创建客户端
func NewStabilityClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		URL:     cfg.StabilityURL,
		APIKey:  cfg.StabilityAPIKey,
		Timeout: time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	})
}

// Inpaint 以 multipart 形式提交原图、蒙版和提示词，返回生成的图片字节
func (c *Client) Inpaint(ctx context.Context, in InpaintRequest) ([]byte, error) {
	if in.OutputFormat == "" {
		in.OutputFormat = "png"
	}

	common.WithFields(map[string]interface{}{
		"endpoint":      c.url,
		"image_size":    len(in.Image),
		"mask_size":     len(in.Mask),
		"output_format": in.OutputFormat,
		"prompt":        common.TruncateForLog(in.Prompt, 200),
	}).Debug("Submitting inpainting request")

	body, contentType, err := buildForm(in)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "image/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.UpstreamError{Provider: providerName, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		common.WithFields(map[string]interface{}{
			"status_code": resp.StatusCode,
			"url":         c.url,
			"body":        common.TruncateForLog(string(respBody), 512),
		}).Error("Inpainting API returned non-success status")
		return nil, &common.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if len(respBody) == 0 || !strings.HasPrefix(http.DetectContentType(respBody), "image/") {
		return nil, &common.UpstreamError{
			Provider: providerName,
			Body:     fmt.Sprintf("expected image bytes, got %q (%d bytes)", resp.Header.Get("Content-Type"), len(respBody)),
		}
	}

	return respBody, nil
}

// buildForm 组装 multipart 表单：image、mask、prompt、output_format
func buildForm(in InpaintRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	imageType := in.ImageMimeType
	if imageType == "" {
		imageType = http.DetectContentType(in.Image)
	}
	if err := writeFile(w, "image", "image"+utils.GetExtensionFromMimeType(imageType), imageType, in.Image); err != nil {
		return nil, "", err
	}
	if err := writeFile(w, "mask", "mask.png", "image/png", in.Mask); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("prompt", in.Prompt); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("output_format", in.OutputFormat); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename, contentType string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
