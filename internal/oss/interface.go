package oss

import (
	"context"
	"io"
)

// OSSIface OSS 客户端接口
type OSSIface interface {
	// UploadFile 上传文件到 OSS，返回文件路径（bucket/key）
	UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)

	// UploadFileWithURL 上传文件并返回对象的访问 URL
	UploadFileWithURL(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error)
}

var _ OSSIface = (*S3Client)(nil)
