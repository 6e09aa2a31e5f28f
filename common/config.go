package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// 视觉服务提供方
const (
	VisionProviderGemini = "gemini"
	VisionProviderOpenAI = "openai"
)

// 提示词风格
const (
	PromptStyleOptimized = "optimized"
	PromptStyleGeneric   = "generic"
)

// 响应模式
const (
	ResponseModeJSON   = "json"
	ResponseModeBinary = "binary"
)

const (
	defaultSegmentationURL = "https://api-inference.huggingface.co/models/nvidia/segformer-b0-finetuned-ade-512-512"
	defaultStabilityURL    = "https://api.stability.ai/v2beta/stable-image/edit/inpaint"
)

// Config 应用配置结构
type Config struct {
	ServerAddress string
	ServerPort    string

	// 视觉模型: gemini 或 openai
	VisionProvider string
	GeminiAPIKey   string
	GeminiBaseURL  string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string

	// 分割模型（Hugging Face Inference API）
	HuggingFaceToken  string
	SegmentationURL   string
	SegmentationLabel string

	// 局部重绘（Stability AI）
	StabilityAPIKey string
	StabilityURL    string

	// 上游请求超时时间（秒）
	ProviderTimeoutSeconds int

	PromptStyle     string
	ResponseMode    string
	MaxUploadMB     int
	DefaultMaterial string

	// 历史记录存储（sqlite 文件路径），为空时关闭历史功能
	DatabaseURL string

	// OSS 配置（可选，用于归档生成的图片）
	OSSEndpoint  string
	OSSRegion    string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string

	// 使用 path-style 访问（MinIO 等自建服务需要）
	OSSUsePathStyle bool

	CORSAllowedOrigins []string

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置，并初始化日志
func LoadConfig() (*Config, error) {
	return loadConfig(true)
}

// LoadConfigWithoutValidation 加载配置但不校验上游服务的密钥，供只访问本地存储的命令使用
func LoadConfigWithoutValidation() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(validate bool) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := FromEnv()
	if validate {
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}

	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// FromEnv 仅读取环境变量，不做校验
func FromEnv() *Config {
	return &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:    getEnv("PORT", "3000"),

		VisionProvider: strings.ToLower(getEnv("VISION_PROVIDER", VisionProviderGemini)),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o"),

		HuggingFaceToken:  getEnv("HUGGINGFACE_TOKEN", ""),
		SegmentationURL:   getEnv("SEGMENTATION_URL", defaultSegmentationURL),
		SegmentationLabel: getEnv("SEGMENTATION_LABEL", "floor"),

		StabilityAPIKey: getEnv("STABILITY_API_KEY", ""),
		StabilityURL:    getEnv("STABILITY_URL", defaultStabilityURL),

		ProviderTimeoutSeconds: getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120),

		PromptStyle:     strings.ToLower(getEnv("PROMPT_STYLE", PromptStyleOptimized)),
		ResponseMode:    strings.ToLower(getEnv("RESPONSE_MODE", ResponseModeJSON)),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 5),
		DefaultMaterial: getEnv("DEFAULT_MATERIAL", "Marble"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OSSEndpoint:  getEnv("OSS_ENDPOINT", ""),
		OSSRegion:    getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey: getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey: getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:    getEnv("OSS_BUCKET", ""),

		OSSUsePathStyle: getEnvBool("OSS_PATH_STYLE", false),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

// Validate 校验必需的配置
func (c *Config) Validate() error {
	switch c.VisionProvider {
	case VisionProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when VISION_PROVIDER=%s", c.VisionProvider)
		}
	case VisionProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when VISION_PROVIDER=%s", c.VisionProvider)
		}
	default:
		return fmt.Errorf("unsupported VISION_PROVIDER: %s", c.VisionProvider)
	}

	if c.HuggingFaceToken == "" {
		return fmt.Errorf("HUGGINGFACE_TOKEN is required")
	}
	if c.StabilityAPIKey == "" {
		return fmt.Errorf("STABILITY_API_KEY is required")
	}

	switch c.PromptStyle {
	case PromptStyleOptimized, PromptStyleGeneric:
	default:
		return fmt.Errorf("unsupported PROMPT_STYLE: %s", c.PromptStyle)
	}

	switch c.ResponseMode {
	case ResponseModeJSON, ResponseModeBinary:
	default:
		return fmt.Errorf("unsupported RESPONSE_MODE: %s", c.ResponseMode)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}

	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes" || value == "on"
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// getEnvList 获取逗号分隔的列表，自动去除空白项
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// MaxUploadBytes 上传大小上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// HistoryEnabled 是否配置了历史记录存储
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// OSSEnabled 是否配置了图片归档
func (c *Config) OSSEnabled() bool {
	return c.OSSBucket != ""
}

// MaskAPIKey 隐藏 API Key 的敏感部分
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
