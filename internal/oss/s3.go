package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"room-visualizer/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client S3 兼容的 OSS 客户端实现
type S3Client struct {
	client       *s3.Client
	endpoint     string // 带协议的完整地址，为空表示 AWS 官方
	region       string
	usePathStyle bool
}

// S3Config S3 客户端配置
type S3Config struct {
	Endpoint     string // 例如：s3.amazonaws.com、oss-cn-hangzhou.aliyuncs.com 或 http://localhost:9000
	Region       string // 例如：us-east-1 或 cn-hangzhou
	AccessKey    string // Access Key ID
	SecretKey    string // Secret Access Key
	UsePathStyle bool   // 使用 endpoint/bucket/key 形式访问
}

// NewS3Client 创建新的 S3 客户端
func NewS3Client(cfg S3Config) (*S3Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	// 未提供静态密钥时使用默认凭证链（环境变量、实例角色等）
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := normalizeEndpoint(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Client{
		client:       client,
		endpoint:     endpoint,
		region:       cfg.Region,
		usePathStyle: cfg.UsePathStyle,
	}, nil
}

// normalizeEndpoint 没有协议时默认使用 https
func normalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	if strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/")
	}
	return "https://" + strings.TrimRight(endpoint, "/")
}

// UploadFile 上传文件到 OSS
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"bucket": bucket,
			"key":    key,
			"size":   len(body),
		}).Error("Failed to upload file to OSS")
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"bucket": bucket,
		"key":    key,
		"size":   len(body),
	}).Info("File uploaded to OSS successfully")

	return fmt.Sprintf("%s/%s", bucket, key), nil
}

// UploadFileWithURL 上传文件并返回对象的访问 URL（不带签名）
func (c *S3Client) UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	if _, err := c.UploadFile(ctx, bucket, key, reader, contentType); err != nil {
		return "", err
	}
	return c.buildObjectURL(bucket, key), nil
}

// buildObjectURL 构造对象的公开 URL
func (c *S3Client) buildObjectURL(bucket, key string) string {
	if c.endpoint != "" {
		if c.usePathStyle {
			return fmt.Sprintf("%s/%s/%s", c.endpoint, bucket, key)
		}
		scheme, host, _ := strings.Cut(c.endpoint, "://")
		return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, host, key)
	}

	if c.region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, c.region, key)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key)
}
