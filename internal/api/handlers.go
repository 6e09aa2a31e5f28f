package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"room-visualizer/common"
	"room-visualizer/internal/history"
	"room-visualizer/internal/pipeline"
	"room-visualizer/internal/utils"
)

// 解析 multipart 时为表单其他字段预留的空间
const multipartOverhead = 1 << 20

const livenessMessage = "Room Visualizer Backend is Live! 🚀"

// GenerateResponse JSON 模式下的成功响应
type GenerateResponse struct {
	Success    bool   `json:"success"`
	Data       string `json:"data"`
	PromptUsed string `json:"promptUsed"`
	Message    string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, livenessMessage)
}

func (s *Server) handleGenerateRoom(w http.ResponseWriter, r *http.Request) {
	log := common.WithField("request_id", pipeline.RequestIDFromContext(r.Context()))

	image, mimeType, material, err := s.readUpload(w, r)
	if err != nil {
		log.WithError(err).Warn("Rejected upload")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.generator.Run(r.Context(), pipeline.GenerationRequest{
		Image:    image,
		MimeType: mimeType,
		Material: material,
	})
	if err != nil {
		if common.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.WithError(err).WithField("stage", common.FailedStage(err)).Error("Generation failed")
		writeGenerationFailed(w, common.FailedStage(err))
		return
	}

	if s.opts.ResponseMode == common.ResponseModeBinary {
		w.Header().Set("Content-Type", result.MimeType)
		w.WriteHeader(http.StatusOK)
		w.Write(result.Image)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:    true,
		Data:       utils.EncodeDataURI(result.MimeType, result.Image),
		PromptUsed: result.Prompt,
		Message:    fmt.Sprintf("Room generated with %s", result.Material),
	})

	// 响应已写出，历史记录在后台保存
	s.recorder.Record(r.Context(), history.Entry{
		Material: result.Material,
		Prompt:   result.Prompt,
		Image:    result.Image,
		MimeType: result.MimeType,
	})
}

// readUpload 解析 multipart 表单并校验图片，返回的 error 均为 *common.ValidationError
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, "", "", common.NewValidationError("Image exceeds the %d MB limit", s.opts.MaxUploadBytes>>20)
		case errors.Is(err, http.ErrNotMultipart):
			return nil, "", "", common.NewValidationError("No image uploaded")
		default:
			return nil, "", "", common.NewValidationError("Invalid multipart form: %v", err)
		}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", "", common.NewValidationError("No image uploaded")
	}
	defer file.Close()

	// 多读一个字节以便识别超限
	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, "", "", common.NewValidationError("Failed to read uploaded image: %v", err)
	}

	mimeType, err := pipeline.ValidateImage(data, header.Header.Get("Content-Type"), s.opts.MaxUploadBytes)
	if err != nil {
		return nil, "", "", err
	}

	return data, mimeType, r.FormValue("material"), nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "History is disabled")
		return
	}

	records, err := s.history.FindRecent(r.Context(), history.MaxRecent)
	if err != nil {
		common.WithError(err).Error("Failed to load history")
		writeJSONError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
