package api

import (
	"encoding/json"
	"net/http"

	"room-visualizer/common"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.WithError(err).Warn("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeGenerationFailed 只返回失败阶段，上游的原始内容只写入日志
func writeGenerationFailed(w http.ResponseWriter, stage common.Stage) {
	resp := ErrorResponse{Error: "Generation Failed"}
	if stage != "" {
		resp.Details = string(stage) + " stage failed"
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}
