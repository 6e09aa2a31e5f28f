// Package api 提供房间可视化的 HTTP 接口。
package api

import (
	"net/http"

	"room-visualizer/common"
	"room-visualizer/internal/history"
	"room-visualizer/internal/pipeline"
)

// Options HTTP 层的可调参数
type Options struct {
	ResponseMode   string   // json 或 binary
	MaxUploadBytes int64    // 上传图片大小上限
	AllowedOrigins []string // CORS 允许的来源
}

// Server HTTP 服务
type Server struct {
	generator pipeline.Generator
	history   history.Store
	recorder  *history.Recorder
	opts      Options
}

// NewServer 创建 Server；store 为 nil 时 /history 返回 503
func NewServer(generator pipeline.Generator, store history.Store, recorder *history.Recorder, opts Options) *Server {
	if opts.ResponseMode == "" {
		opts.ResponseMode = common.ResponseModeJSON
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		generator: generator,
		history:   store,
		recorder:  recorder,
		opts:      opts,
	}
}

// ServeMux 注册所有路由
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /generate-room", s.handleGenerateRoom)
	mux.HandleFunc("GET /history", s.handleHistory)
	return mux
}

// Handler 返回带中间件的完整处理链
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.ServeMux()
	h = CORSMiddleware(s.opts.AllowedOrigins)(h)
	h = LoggingMiddleware(h)
	h = RequestIDMiddleware(h)
	return h
}
