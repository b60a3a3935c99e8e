package handlers

import (
	"context"

	"flic_feed/affinity"
	"flic_feed/models"
)

// FeedProvider 由 services.FeedService 实现
type FeedProvider interface {
	GetFeed(ctx context.Context, username string, categoryID *int64) (*models.FeedResult, error)
}

// PostSource 由 services.SourceAdapter 实现
type PostSource interface {
	Fetch(ctx context.Context, category models.EngagementCategory) ([]models.Post, error)
	FetchAllPosts(ctx context.Context) ([]models.Post, error)
	FetchUsers(ctx context.Context) ([]models.User, error)
}

// ModelManager 由 affinity.Store 实现
type ModelManager interface {
	Train(ctx context.Context, src affinity.TrainingSource) (*affinity.Model, error)
	Reload(ctx context.Context) (*affinity.Model, error)
	Status() models.ModelStatus
	Ready() bool
}

// Handler 持有路由需要的服务，依赖在启动时注入
type Handler struct {
	feed     FeedProvider
	source   PostSource
	model    ModelManager
	training affinity.TrainingSource
}

// NewHandler model 和 training 可以为 nil，此时模型相关接口返回 503
func NewHandler(feed FeedProvider, source PostSource, model ModelManager, training affinity.TrainingSource) *Handler {
	return &Handler{feed: feed, source: source, model: model, training: training}
}
