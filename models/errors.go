package models

import (
	"errors"
	"fmt"
)

// UpstreamError 上游内容服务返回非 200 状态。状态码和响应体原样保留，由 HTTP 层透传给调用方。
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("API request failed: %s (HTTP %d): %s", e.Endpoint, e.Status, e.Body)
}

// ModelNotReadyError 亲和度模型尚未训练或加载
type ModelNotReadyError struct{}

func (ModelNotReadyError) Error() string {
	return "affinity model is not ready"
}

// ErrModelNotReady 可用 errors.Is 比较的哨兵值
var ErrModelNotReady error = ModelNotReadyError{}

// ErrTrainingInProgress 已有训练在进行
var ErrTrainingInProgress = errors.New("model training already in progress")

// ShapeMismatchError 交互矩阵或用户行与模型的物品维度不一致
type ShapeMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeMismatchError) Error() string {
	if e.What == "" {
		return fmt.Sprintf("shape mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("shape mismatch: %s expected %d, got %d", e.What, e.Expected, e.Actual)
}

// ConfigurationError 启动配置缺失或非法，进程不能开始服务
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
