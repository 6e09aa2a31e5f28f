package main

import (
	"context"
	"fmt"
	"time"

	"room-visualizer/common"
	"room-visualizer/internal/genai/gemini"
	"room-visualizer/internal/genai/huggingface"
	"room-visualizer/internal/genai/openai"
	"room-visualizer/internal/genai/stability"
	"room-visualizer/internal/history"
	"room-visualizer/internal/oss"
	"room-visualizer/internal/pipeline"
)

// app 根据配置组装好的依赖
type app struct {
	config   *common.Config
	pipeline *pipeline.Pipeline
	store    *history.SQLiteStore // 未配置 DATABASE_URL 时为 nil
	recorder *history.Recorder
	closers  []func() error
}

// newApp 创建上游客户端、历史存储和流水线
func newApp(config *common.Config) (*app, error) {
	a := &app{config: config}

	describer, err := newDescriber(config)
	if err != nil {
		return nil, err
	}
	if c, ok := describer.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	segmenter, err := huggingface.NewHuggingFaceClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create segmentation client: %w", err)
	}

	inpainter, err := stability.NewStabilityClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create inpainting client: %w", err)
	}

	a.pipeline, err = pipeline.New(describer, segmenter, stabilityInpainter{client: inpainter},
		pipeline.WithPromptStyle(config.PromptStyle),
		pipeline.WithDefaultMaterial(config.DefaultMaterial),
	)
	if err != nil {
		return nil, err
	}

	if err := a.openHistory(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// openHistory 打开历史存储并创建 Recorder；未配置时 Recorder 为空操作
func (a *app) openHistory() error {
	if !a.config.HistoryEnabled() {
		common.Info("History is disabled (DATABASE_URL is not set)")
		a.recorder = history.NewRecorder(nil)
		return nil
	}

	store, err := history.OpenSQLite(a.config.DatabaseURL)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	opts := []history.RecorderOption{
		history.WithTimeout(time.Duration(a.config.ProviderTimeoutSeconds) * time.Second),
	}
	if a.config.OSSEnabled() {
		ossClient, err := oss.NewOSSClientFromConfig(a.config)
		if err != nil {
			return fmt.Errorf("failed to create OSS client: %w", err)
		}
		opts = append(opts, history.WithArchive(ossClient, a.config.OSSBucket))
		common.WithField("bucket", a.config.OSSBucket).Info("Generated images will be archived to OSS")
	}

	a.recorder = history.NewRecorder(store, opts...)
	common.WithField("database", a.config.DatabaseURL).Info("History store ready")
	return nil
}

// historyStore 返回接口形式的存储，未启用时返回 nil 接口
func (a *app) historyStore() history.Store {
	if a.store == nil {
		return nil
	}
	return a.store
}

// Close 等待后台写入完成后释放资源
func (a *app) Close() {
	a.recorder.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			common.WithError(err).Warn("Failed to close resource")
		}
	}
}

var (
	_ pipeline.Describer = (*gemini.Client)(nil)
	_ pipeline.Describer = (*openai.Client)(nil)
	_ pipeline.Segmenter = (*huggingface.Client)(nil)
	_ pipeline.Inpainter = stabilityInpainter{}
)

// stabilityInpainter 将流水线的重绘请求转换为 Stability 客户端的请求
type stabilityInpainter struct {
	client *stability.Client
}

func (s stabilityInpainter) Inpaint(ctx context.Context, req pipeline.InpaintRequest) ([]byte, error) {
	return s.client.Inpaint(ctx, stability.InpaintRequest{
		Image:         req.Image,
		ImageMimeType: req.ImageMimeType,
		Mask:          req.Mask,
		Prompt:        req.Prompt,
		OutputFormat:  req.OutputFormat,
	})
}

func newDescriber(config *common.Config) (pipeline.Describer, error) {
	switch config.VisionProvider {
	case common.VisionProviderOpenAI:
		return openai.NewOpenAIClientFromConfig(config)
	default:
		return gemini.NewGeminiClientFromConfig(config)
	}
}

func logStartup(config *common.Config) {
	fields := map[string]interface{}{
		"vision_provider": config.VisionProvider,
		"prompt_style":    config.PromptStyle,
		"response_mode":   config.ResponseMode,
		"max_upload_mb":   config.MaxUploadMB,
		"huggingface_key": common.MaskAPIKey(config.HuggingFaceToken),
		"stability_key":   common.MaskAPIKey(config.StabilityAPIKey),
	}
	switch config.VisionProvider {
	case common.VisionProviderOpenAI:
		fields["vision_model"] = config.OpenAIModel
		fields["vision_key"] = common.MaskAPIKey(config.OpenAIAPIKey)
	default:
		fields["vision_model"] = config.GeminiModel
		fields["vision_key"] = common.MaskAPIKey(config.GeminiAPIKey)
	}
	common.WithFields(fields).Info("Configuration loaded")
}
