package oss

import (
	"room-visualizer/common"
)

// NewOSSClientFromConfig 从配置创建 OSS 客户端
func NewOSSClientFromConfig(cfg *common.Config) (*S3Client, error) {
	return NewS3Client(S3Config{
		Endpoint:     cfg.OSSEndpoint,
		Region:       cfg.OSSRegion,
		AccessKey:    cfg.OSSAccessKey,
		SecretKey:    cfg.OSSSecretKey,
		UsePathStyle: cfg.OSSUsePathStyle,
	})
}
