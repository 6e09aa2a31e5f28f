package history

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"room-visualizer/common"
	"room-visualizer/internal/oss"
	"room-visualizer/internal/utils"
)

const defaultRecordTimeout = 30 * time.Second

// Entry 一次成功生成后需要保存的内容
type Entry struct {
	Material string
	Prompt   string
	Image    []byte
	MimeType string
}

// Recorder 在响应之外异步保存历史记录，任何失败只记录日志
type Recorder struct {
	store   Store
	archive oss.OSSIface
	bucket  string
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// RecorderOption 可选配置
type RecorderOption func(*Recorder)

// WithArchive 保存记录前先将图片上传到 OSS
func WithArchive(client oss.OSSIface, bucket string) RecorderOption {
	return func(r *Recorder) {
		r.archive = client
		r.bucket = bucket
	}
}

// WithTimeout 单次写入的超时时间
func WithTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRecorder 创建 Recorder；store 为 nil 时 Record 不做任何事
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		timeout: defaultRecordTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled 是否配置了存储
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Record 在后台 goroutine 中保存记录，立即返回。
// ctx 只用于传递值，调用方取消不会中断写入。
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if !r.Enabled() {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				common.WithField("panic", p).Error("History recorder panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.save(ctx, entry); err != nil {
			common.WithError(err).WithField("material", entry.Material).Error("Failed to save history record")
		}
	}()
}

func (r *Recorder) save(ctx context.Context, entry Entry) error {
	mimeType := entry.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	rec := &Record{
		Material:        entry.Material,
		OptimizedPrompt: entry.Prompt,
		ImageDataURI:    utils.EncodeDataURI(mimeType, entry.Image),
		CreatedAt:       r.now().UTC(),
	}

	if r.archive != nil && r.bucket != "" {
		key := utils.GenerateImageKey(rec.CreatedAt, mimeType)
		url, err := r.archive.UploadFileWithURL(ctx, r.bucket, key, bytes.NewReader(entry.Image), mimeType)
		if err != nil {
			// 归档失败不影响记录本身
			common.WithError(err).WithField("key", key).Warn("Failed to archive generated image")
		} else {
			rec.ImageURL = url
		}
	}

	if err := r.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}

	common.WithFields(map[string]interface{}{
		"id":       rec.ID,
		"material": rec.Material,
		"archived": rec.ImageURL != "",
	}).Info("History record saved")
	return nil
}

// Wait 等待所有后台写入完成
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
