package utils

import (
	"net/http"

	"github.com/goccy/go-json"

	"flic_feed/logger"
	"flic_feed/models"
)

// WriteFormattedJSON 格式化JSON输出，使其更易读
func WriteFormattedJSON(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSON 以指定状态码写入格式化的JSON
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ") // 使用4个空格缩进
	if err := encoder.Encode(data); err != nil {
		logger.Warn("写入响应失败", "error", err)
	}
}

// WriteSuccessResponse 写入成功响应
func WriteSuccessResponse(w http.ResponseWriter, data interface{}) {
	WriteFormattedJSON(w, models.NewSuccessResponse(data))
}

// WriteErrorResponse 写入错误响应
func WriteErrorResponse(w http.ResponseWriter, status, code int, data interface{}) {
	WriteJSON(w, status, models.NewErrorResponse(code, data))
}

// WriteCustomErrorResponse 写入自定义错误消息的响应
func WriteCustomErrorResponse(w http.ResponseWriter, status, code int, message string, data interface{}) {
	WriteJSON(w, status, models.NewCustomErrorResponse(code, message, data))
}
