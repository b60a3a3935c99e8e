package services

import (
	"flic_feed/models"
)

// FilterByCategory 按分类 id 过滤候选集。
// categoryID 为 nil 时按候选集顺序原样返回；否则只保留 category.id 相等的帖子，
// 没有分类或分类没有 id 的帖子永远不匹配。纯函数。
func FilterByCategory(set *models.CandidateSet, categoryID *int64) []models.Post {
	posts := set.Posts()
	if categoryID == nil {
		return posts
	}

	filtered := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Category.Matches(*categoryID) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
