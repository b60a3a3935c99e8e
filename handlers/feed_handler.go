package handlers

import (
	"net/http"

	"flic_feed/models"
	"flic_feed/utils"
)

func (h *Handler) engagementHandler(category models.EngagementCategory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.source.Fetch(r.Context(), category)
		if err != nil {
			utils.HandleServiceError(w, err)
			return
		}
		utils.WriteFormattedJSON(w, posts)
	}
}

// ViewedPostsHandler godoc
// @Summary 获取浏览过的帖子
// @Description 从上游内容服务获取 viewed 互动帖子，原样返回
// @Tags 互动数据
// @Produce json
// @Success 200 {array} models.Post "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /viewed-posts [get]
func (h *Handler) ViewedPostsHandler(w http.ResponseWriter, r *http.Request) {
	h.engagementHandler(models.EngagementViewed)(w, r)
}

// LikedPostsHandler godoc
// @Summary 获取点赞过的帖子
// @Tags 互动数据
// @Produce json
// @Success 200 {array} models.Post "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /liked-posts [get]
func (h *Handler) LikedPostsHandler(w http.ResponseWriter, r *http.Request) {
	h.engagementHandler(models.EngagementLiked)(w, r)
}

// InspiredPostsHandler godoc
// @Summary 获取 inspired 帖子
// @Tags 互动数据
// @Produce json
// @Success 200 {array} models.Post "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /inspired-posts [get]
func (h *Handler) InspiredPostsHandler(w http.ResponseWriter, r *http.Request) {
	h.engagementHandler(models.EngagementInspired)(w, r)
}

// RatedPostsHandler godoc
// @Summary 获取评分过的帖子
// @Tags 互动数据
// @Produce json
// @Success 200 {array} models.Post "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /rated-posts [get]
func (h *Handler) RatedPostsHandler(w http.ResponseWriter, r *http.Request) {
	h.engagementHandler(models.EngagementRated)(w, r)
}

// AllUsersHandler godoc
// @Summary 获取全部用户
// @Tags 互动数据
// @Produce json
// @Success 200 {array} object "用户列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /all-users [get]
func (h *Handler) AllUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.source.FetchUsers(r.Context())
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteFormattedJSON(w, users)
}

// AllPostsHandler godoc
// @Summary 获取全部帖子摘要
// @Tags 互动数据
// @Produce json
// @Success 200 {array} models.Post "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /all-posts [get]
func (h *Handler) AllPostsHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := h.source.FetchAllPosts(r.Context())
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteFormattedJSON(w, posts)
}

// PostsAllHandler godoc
// @Summary 获取全部帖子（带状态信息）
// @Tags 互动数据
// @Produce json
// @Success 200 {object} models.AllPostsResponse "帖子列表"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /posts/all [get]
func (h *Handler) PostsAllHandler(w http.ResponseWriter, r *http.Request) {
	posts, err := h.source.FetchAllPosts(r.Context())
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteFormattedJSON(w, models.AllPostsResponse{
		Status:  "success",
		Message: "Fetched all posts",
		Posts:   posts,
	})
}

// FeedHandler godoc
// @Summary 获取个性化推荐流
// @Description 合并四类互动帖子并去重，可按分类过滤；启用模型排序时按亲和度分数降序
// @Tags 推荐流
// @Produce json
// @Param username query string true "用户名"
// @Param category_id query int false "分类ID"
// @Success 200 {object} models.FeedResult "推荐流"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "上游或服务器错误"
// @Router /feed [get]
func (h *Handler) FeedHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := utils.RequireQuery(w, r, "username")
	if !ok {
		return
	}
	categoryID, ok := utils.OptionalCategoryID(w, r)
	if !ok {
		return
	}

	result, err := h.feed.GetFeed(r.Context(), username, categoryID)
	if err != nil {
		utils.HandleServiceError(w, err)
		return
	}
	utils.WriteFormattedJSON(w, result)
}
