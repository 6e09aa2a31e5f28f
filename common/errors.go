package common

import (
	"errors"
	"fmt"
)

// ValidationError 上传内容不合法（缺少图片、类型错误、超出大小），对应 HTTP 400
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UpstreamError 上游服务调用失败或返回了无法识别的内容
type UpstreamError struct {
	Provider   string
	StatusCode int    // 0 表示请求未得到 HTTP 响应
	Body       string // 上游返回的原始内容，仅用于日志
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s api error: status %d, body: %s", e.Provider, e.StatusCode, TruncateForLog(e.Body, 512))
	case e.Err != nil:
		return fmt.Sprintf("%s api error: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s api error: %s", e.Provider, TruncateForLog(e.Body, 512))
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Stage 流水线阶段
type Stage string

const (
	StageDescribe Stage = "describe"
	StageSegment  Stage = "segment"
	StageInpaint  Stage = "inpaint"
)

// StageError 标记失败发生在哪个阶段
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PersistenceError 历史记录写入失败，只记录日志，不影响响应
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// FailedStage 返回出错的阶段，非流水线错误返回空字符串
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
