package pipeline

import (
	"mime"
	"net/http"
	"strings"

	"room-visualizer/common"
)

// ValidateImage 在调用任何上游服务之前检查上传内容，返回实际使用的 MIME 类型。
// 声明的类型和嗅探到的类型都必须是 image/*；application/octet-stream 视为未声明。
func ValidateImage(data []byte, declaredType string, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", common.NewValidationError("No image uploaded")
	}
	if int64(len(data)) > maxBytes {
		return "", common.NewValidationError("Image exceeds the %d MB limit", maxBytes>>20)
	}

	declared := ""
	if declaredType != "" {
		if mt, _, err := mime.ParseMediaType(declaredType); err == nil {
			declared = strings.ToLower(mt)
		}
		if declared == "application/octet-stream" {
			declared = ""
		} else if !strings.HasPrefix(declared, "image/") {
			return "", common.NewValidationError("Only image uploads are allowed")
		}
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", common.NewValidationError("Only image uploads are allowed")
	}

	if declared != "" {
		return declared, nil
	}
	return sniffed, nil
}
