// Package history 保存生成成功的记录，并按时间倒序查询最近的记录。
package history

import (
	"context"
	"time"
)

// MaxRecent 查询最近记录时返回的最大条数
const MaxRecent = 20

// Record 一次成功生成的历史记录，写入后只读
type Record struct {
	ID              int64     `json:"id"`
	Material        string    `json:"material"`
	OptimizedPrompt string    `json:"optimizedPrompt"`
	ImageDataURI    string    `json:"imageDataUri"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store 历史记录存储
type Store interface {
	// Create 追加一条记录，成功后回填 ID 和 CreatedAt
	Create(ctx context.Context, rec *Record) error
	// FindRecent 按创建时间倒序返回最多 limit 条记录
	FindRecent(ctx context.Context, limit int) ([]Record, error)
}

// ClampLimit 将 limit 限制在 [1, MaxRecent]，非正数视为 MaxRecent
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
