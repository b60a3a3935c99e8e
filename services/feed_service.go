package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"flic_feed/affinity"
	"flic_feed/logger"
	"flic_feed/models"
)

// EngagementFetcher 按互动类型获取帖子，由 SourceAdapter 实现
type EngagementFetcher interface {
	Fetch(ctx context.Context, category models.EngagementCategory) ([]models.Post, error)
}

// ModelSource 提供当前亲和度模型，由 affinity.Store 实现
type ModelSource interface {
	Current() (*affinity.Model, error)
}

// FeedOptions 推荐流组装参数
type FeedOptions struct {
	RankWithModel bool
	NeutralScore  float64 // 不在模型物品空间中的帖子使用的分数
}

// FeedService 推荐流组装器：并发拉取四类互动 → 合并去重 → 分类过滤 → 可选的模型排序
type FeedService struct {
	fetcher EngagementFetcher
	scorer  ModelSource
	opts    FeedOptions
}

// NewFeedService 创建组装器，store 可以为 nil（不排序）
func NewFeedService(fetcher EngagementFetcher, store ModelSource, opts FeedOptions) *FeedService {
	return &FeedService{fetcher: fetcher, scorer: store, opts: opts}
}

// GetFeed 组装用户的个性化推荐流。
// 任何一个数据源失败都会取消其余请求，并把该错误原样返回，不返回部分结果。
func (s *FeedService) GetFeed(ctx context.Context, username string, categoryID *int64) (*models.FeedResult, error) {
	start := time.Now()

	streams, err := s.fetchEngagements(ctx)
	if err != nil {
		feedRequests.WithLabelValues("error", "none").Inc()
		logger.Error("Failed to fetch engagement data", "username", username, "error", err)
		return nil, err
	}

	candidates := AggregateStreams(streams)
	feedCandidates.Observe(float64(candidates.Len()))

	posts := FilterByCategory(candidates, categoryID)

	ranking := "none"
	if s.opts.RankWithModel {
		ranked, ok := s.rank(candidates, posts)
		if ok {
			posts = ranked
			ranking = "model"
		} else {
			ranking = "unavailable"
		}
	}
	feedRequests.WithLabelValues("success", ranking).Inc()

	logger.Info("Feed assembled",
		"username", username,
		"candidates", candidates.Len(),
		"recommendations", len(posts),
		"ranking", ranking,
		"cost", time.Since(start).String())

	return &models.FeedResult{Username: username, Recommendations: posts}, nil
}

// fetchEngagements 并发获取四类互动。第一个错误取消其余请求；已发出的请求无需回滚（只读）。
func (s *FeedService) fetchEngagements(ctx context.Context) (map[models.EngagementCategory][]models.Post, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([][]models.Post, len(models.EngagementOrder))

	for i, category := range models.EngagementOrder {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			posts, err := s.fetcher.Fetch(gctx, category)
			if err != nil {
				return err
			}
			results[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	streams := make(map[models.EngagementCategory][]models.Post, len(results))
	for i, category := range models.EngagementOrder {
		streams[category] = results[i]
	}
	return streams, nil
}

// rank 以候选集整体作为用户互动行打分，对过滤后的帖子按分数降序稳定排序。
// 模型未就绪或打分失败时返回 false，调用方保持合并顺序。
func (s *FeedService) rank(candidates *models.CandidateSet, posts []models.Post) ([]models.Post, bool) {
	if s.scorer == nil {
		return nil, false
	}
	model, err := s.scorer.Current()
	if err != nil {
		if errors.Is(err, models.ErrModelNotReady) {
			logger.Debug("Affinity model not ready, feed left unranked")
		} else {
			logger.Warn("Failed to get affinity model", "error", err)
		}
		return nil, false
	}

	ids := candidates.IDs()
	interacted := make([]string, len(ids))
	for i, id := range ids {
		interacted[i] = id.String()
	}
	scores, err := model.Score(model.RowFor(interacted))
	if err != nil {
		logger.Warn("Affinity scoring failed, feed left unranked", "error", err)
		return nil, false
	}

	type scored struct {
		post  models.Post
		score float64
	}
	items := make([]scored, len(posts))
	misses := 0
	for i, p := range posts {
		score := s.opts.NeutralScore
		if idx, ok := model.ItemIndex(p.ID.String()); ok {
			score = scores[idx]
		} else {
			misses++
		}
		items[i] = scored{post: p, score: score}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	if misses > 0 {
		logger.Debug("Posts outside model item space ranked with neutral score", "misses", misses, "neutral_score", s.opts.NeutralScore)
	}

	ranked := make([]models.Post, len(items))
	for i, it := range items {
		ranked[i] = it.post
	}
	return ranked, true
}
