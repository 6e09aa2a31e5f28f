package pipeline

import (
	"context"
)

// OutputFormat 生成图片的格式
const OutputFormat = "png"

// GenerationRequest 一次生成请求
type GenerationRequest struct {
	Image    []byte
	MimeType string
	Material string // 为空时使用默认材质
}

// Description 视觉模型输出：房间描述或优化后的重绘提示词
type Description struct {
	Text string
}

// Mask 分割模型输出的蒙版，不解析其内容
type Mask struct {
	Data []byte
}

// GenerationResult 生成结果
type GenerationResult struct {
	Image       []byte
	MimeType    string
	Prompt      string // 实际提交给重绘模型的提示词
	Material    string
	Description string
}

// Describer 视觉模型
type Describer interface {
	Describe(ctx context.Context, image []byte, mimeType string, instruction string) (string, error)
}

// Segmenter 分割模型
type Segmenter interface {
	Segment(ctx context.Context, image []byte) ([]byte, error)
}

// InpaintRequest 提交给重绘模型的输入
type InpaintRequest struct {
	Image         []byte
	ImageMimeType string
	Mask          []byte
	Prompt        string
	OutputFormat  string
}

// Inpainter 局部重绘模型
type Inpainter interface {
	Inpaint(ctx context.Context, req InpaintRequest) ([]byte, error)
}

// Generator 执行一次完整的生成流程，*Pipeline 实现该接口
type Generator interface {
	Run(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}
