package models

import "time"

// APIResponse 通用API响应
type APIResponse struct {
	Code    int         `json:"code" example:"0"`
	Message string      `json:"message" example:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// AllPostsResponse /posts/all 响应
type AllPostsResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Fetched all posts"`
	Posts   []Post `json:"posts"`
}

// ModelStatus 模型状态
type ModelStatus struct {
	Ready     bool      `json:"ready" example:"true"`
	Training  bool      `json:"training" example:"false"`
	Items     int       `json:"items" example:"500"`
	Users     int       `json:"users" example:"100"`
	Epochs    int       `json:"epochs" example:"10"`
	FinalLoss float64   `json:"final_loss" example:"0.69"`
	Source    string    `json:"source,omitempty" example:"synthetic"`
	TrainedAt time.Time `json:"trained_at,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string `json:"status" example:"ok"`
	ModelReady bool   `json:"model_ready" example:"true"`
}
