package utils

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"flic_feed/models"
)

// IsSQLNoRowsError 检查错误是否为SQL无结果错误
func IsSQLNoRowsError(err error) bool {
	return err != nil && errors.Is(err, sql.ErrNoRows)
}

// ErrorStatus 服务层错误对应的 HTTP 状态码、响应码和消息
func ErrorStatus(err error) (status, code int, message string) {
	var upstreamErr *models.UpstreamError
	var shapeErr *models.ShapeMismatchError
	switch {
	case errors.As(err, &upstreamErr):
		status = upstreamErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, models.CodeThirdPartyAPIError, "API request failed: " + upstreamErr.Body
	case errors.Is(err, models.ErrModelNotReady):
		return http.StatusServiceUnavailable, models.CodeModelNotReady, err.Error()
	case errors.Is(err, models.ErrTrainingInProgress):
		return http.StatusConflict, models.CodeTrainingInProgress, err.Error()
	case errors.As(err, &shapeErr):
		return http.StatusBadRequest, models.CodeInvalidParams, err.Error()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, models.CodeThirdPartyAPIError, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, models.CodeServerError, err.Error()
	case IsSQLNoRowsError(err):
		return http.StatusNotFound, models.CodeDatabaseError, err.Error()
	default:
		return http.StatusInternalServerError, models.CodeServerError, err.Error()
	}
}

// HandleServiceError 处理服务层错误的通用函数
func HandleServiceError(w http.ResponseWriter, err error) {
	status, code, message := ErrorStatus(err)
	WriteCustomErrorResponse(w, status, code, message, map[string]interface{}{})
}
