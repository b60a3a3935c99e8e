package handlers

import (
	"context"
	"errors"
	"net/http"

	"flic_feed/affinity"
	"flic_feed/models"
	"flic_feed/utils"
)

// TrainModelHandler godoc
// @Summary 训练亲和度模型
// @Description 从配置的数据源重新训练模型并替换当前模型；已有训练进行时返回 409
// @Tags 模型
// @Produce json
// @Success 200 {object} models.APIResponse "训练摘要"
// @Failure 409 {object} models.APIResponse "训练中"
// @Failure 500 {object} models.APIResponse "训练失败"
// @Router /api/model/train [post]
func (h *Handler) TrainModelHandler(w http.ResponseWriter, r *http.Request) {
	if h.model == nil || h.training == nil {
		utils.WriteErrorResponse(w, http.StatusServiceUnavailable, models.CodeModelNotReady, map[string]interface{}{})
		return
	}

	// 客户端断开不应中断已经开始的训练
	m, err := h.model.Train(context.WithoutCancel(r.Context()), h.training)
	if err != nil {
		if errors.Is(err, models.ErrTrainingInProgress) {
			utils.HandleServiceError(w, err)
			return
		}
		utils.WriteCustomErrorResponse(w, http.StatusInternalServerError, models.CodeModelTrainError, err.Error(), map[string]interface{}{})
		return
	}
	utils.WriteSuccessResponse(w, m.Report())
}

// ReloadModelHandler godoc
// @Summary 从快照加载模型
// @Tags 模型
// @Produce json
// @Success 200 {object} models.APIResponse "模型状态"
// @Failure 404 {object} models.APIResponse "没有快照"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/model/reload [post]
func (h *Handler) ReloadModelHandler(w http.ResponseWriter, r *http.Request) {
	if h.model == nil {
		utils.WriteErrorResponse(w, http.StatusServiceUnavailable, models.CodeModelNotReady, map[string]interface{}{})
		return
	}
	if _, err := h.model.Reload(r.Context()); err != nil {
		if errors.Is(err, affinity.ErrNoSnapshot) {
			utils.WriteCustomErrorResponse(w, http.StatusNotFound, models.CodeDatabaseError, err.Error(), map[string]interface{}{})
			return
		}
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, h.model.Status())
}

// ModelStatusHandler godoc
// @Summary 模型状态
// @Tags 模型
// @Produce json
// @Success 200 {object} models.ModelStatus "模型状态"
// @Router /api/model/status [get]
func (h *Handler) ModelStatusHandler(w http.ResponseWriter, r *http.Request) {
	if h.model == nil {
		utils.WriteFormattedJSON(w, models.ModelStatus{})
		return
	}
	utils.WriteFormattedJSON(w, h.model.Status())
}

// HealthHandler godoc
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} models.HealthResponse "服务状态"
// @Router /health [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteFormattedJSON(w, models.HealthResponse{
		Status:     "ok",
		ModelReady: h.model != nil && h.model.Ready(),
	})
}
