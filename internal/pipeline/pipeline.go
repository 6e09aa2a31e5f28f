// Package pipeline 按固定顺序调用三个上游模型：描述、分割、重绘。
//
// 每个阶段接收上一阶段的类型化输出；任意阶段失败立即终止，不重试，
// 返回的错误为 *common.StageError，可据此判断失败的阶段。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"room-visualizer/common"

	"github.com/sirupsen/logrus"
)

// Pipeline 房间地板替换流水线
type Pipeline struct {
	describer       Describer
	segmenter       Segmenter
	inpainter       Inpainter
	style           string
	defaultMaterial string
}

// Option 可选配置
type Option func(*Pipeline)

// WithPromptStyle 设置提示词风格（optimized 或 generic）
func WithPromptStyle(style string) Option {
	return func(p *Pipeline) {
		if style != "" {
			p.style = style
		}
	}
}

// WithDefaultMaterial 设置未指定材质时使用的默认值
func WithDefaultMaterial(material string) Option {
	return func(p *Pipeline) {
		if material != "" {
			p.defaultMaterial = material
		}
	}
}

// New 注入三个上游客户端创建流水线
func New(describer Describer, segmenter Segmenter, inpainter Inpainter, opts ...Option) (*Pipeline, error) {
	if describer == nil {
		return nil, fmt.Errorf("describer is required")
	}
	if segmenter == nil {
		return nil, fmt.Errorf("segmenter is required")
	}
	if inpainter == nil {
		return nil, fmt.Errorf("inpainter is required")
	}

	p := &Pipeline{
		describer:       describer,
		segmenter:       segmenter,
		inpainter:       inpainter,
		style:           common.PromptStyleOptimized,
		defaultMaterial: "Marble",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DefaultMaterial 未指定材质时使用的值
func (p *Pipeline) DefaultMaterial() string {
	return p.defaultMaterial
}

// Run 依次执行 describe → segment → inpaint
func (p *Pipeline) Run(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	req.Material = NormalizeMaterial(req.Material, p.defaultMaterial)
	log := common.WithFields(map[string]interface{}{
		"material":   req.Material,
		"mime_type":  req.MimeType,
		"image_size": len(req.Image),
	})
	if id := RequestIDFromContext(ctx); id != "" {
		log = log.WithField("request_id", id)
	}
	log.Info("Starting room generation")

	var desc Description
	err := runStage(ctx, log, common.StageDescribe, func(ctx context.Context) (err error) {
		desc, err = p.describe(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	var mask Mask
	err = runStage(ctx, log, common.StageSegment, func(ctx context.Context) (err error) {
		mask, err = p.segment(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	var result *GenerationResult
	err = runStage(ctx, log, common.StageInpaint, func(ctx context.Context) (err error) {
		result, err = p.inpaint(ctx, req, desc, mask)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithField("prompt", common.TruncateForLog(result.Prompt, 200)).Info("Room generation finished")
	return result, nil
}

func (p *Pipeline) describe(ctx context.Context, req GenerationRequest) (Description, error) {
	text, err := p.describer.Describe(ctx, req.Image, req.MimeType, BuildInstruction(p.style, req.Material))
	if err != nil {
		return Description{}, err
	}
	return Description{Text: text}, nil
}

func (p *Pipeline) segment(ctx context.Context, req GenerationRequest) (Mask, error) {
	data, err := p.segmenter.Segment(ctx, req.Image)
	if err != nil {
		return Mask{}, err
	}
	if len(data) == 0 {
		return Mask{}, fmt.Errorf("empty mask")
	}
	return Mask{Data: data}, nil
}

func (p *Pipeline) inpaint(ctx context.Context, req GenerationRequest, desc Description, mask Mask) (*GenerationResult, error) {
	prompt := ComposePrompt(p.style, req.Material, desc.Text)

	image, err := p.inpainter.Inpaint(ctx, InpaintRequest{
		Image:         req.Image,
		ImageMimeType: req.MimeType,
		Mask:          mask.Data,
		Prompt:        prompt,
		OutputFormat:  OutputFormat,
	})
	if err != nil {
		return nil, err
	}

	return &GenerationResult{
		Image:       image,
		MimeType:    "image/" + OutputFormat,
		Prompt:      prompt,
		Material:    req.Material,
		Description: desc.Text,
	}, nil
}

// runStage 执行单个阶段，记录耗时并用 StageError 包装失败
func runStage(ctx context.Context, log *logrus.Entry, stage common.Stage, fn func(context.Context) error) error {
	start := time.Now()
	log.WithField("stage", stage).Debug("Stage started")

	if err := fn(ctx); err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"stage":    stage,
			"duration": time.Since(start).String(),
		}).Error("Stage failed")
		return &common.StageError{Stage: stage, Err: err}
	}

	log.WithFields(map[string]interface{}{
		"stage":    stage,
		"duration": time.Since(start).String(),
	}).Info("Stage finished")
	return nil
}
