package services

import (
	"flic_feed/models"
)

// Aggregate 合并四类互动记录为按 id 去重的候选集。
//
// 合并顺序固定为 viewed → liked → inspired → rated。同一 id 出现多次时，
// 后出现的记录整体覆盖先前的记录（例如 rated 中的分类会覆盖 viewed 中的），
// 但候选集中的位置保持第一次出现时的位置。
// 同一类型内部的重复 id 按相同规则合并。
func Aggregate(viewed, liked, inspired, rated []models.Post) *models.CandidateSet {
	set := models.NewCandidateSet()
	for _, list := range [][]models.Post{viewed, liked, inspired, rated} {
		for _, p := range list {
			set.Put(p)
		}
	}
	return set
}

// AggregateStreams 按 models.EngagementOrder 合并，缺失的类型视为空
func AggregateStreams(streams map[models.EngagementCategory][]models.Post) *models.CandidateSet {
	return Aggregate(
		streams[models.EngagementViewed],
		streams[models.EngagementLiked],
		streams[models.EngagementInspired],
		streams[models.EngagementRated],
	)
}
