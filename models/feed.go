package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EngagementCategory 互动类型
type EngagementCategory string

const (
	EngagementViewed   EngagementCategory = "viewed"
	EngagementLiked    EngagementCategory = "liked"
	EngagementInspired EngagementCategory = "inspired"
	EngagementRated    EngagementCategory = "rated"
)

// EngagementOrder 合并顺序，后面的类型在 id 冲突时覆盖前面的
var EngagementOrder = []EngagementCategory{
	EngagementViewed,
	EngagementLiked,
	EngagementInspired,
	EngagementRated,
}

var engagementPaths = map[EngagementCategory]string{
	EngagementViewed:   "/posts/view",
	EngagementLiked:    "/posts/like",
	EngagementInspired: "/posts/inspire",
	EngagementRated:    "/posts/rating",
}

// Path 上游接口路径
func (c EngagementCategory) Path() (string, error) {
	p, ok := engagementPaths[c]
	if !ok {
		return "", fmt.Errorf("unknown engagement category %q", string(c))
	}
	return p, nil
}

// User 上游用户记录，不做解析
type User = json.RawMessage

// FeedResult 个性化推荐结果，每次请求重新计算
type FeedResult struct {
	Username        string `json:"username"`
	Recommendations []Post `json:"recommendations"`
}

// Interaction 一条历史互动，用于构建训练矩阵
type Interaction struct {
	UserID string
	PostID string
}
