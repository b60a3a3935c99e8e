package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"flic_feed/config"
	_ "flic_feed/docs" // 导入 swagger 文档
)

func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handler) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	// Swagger 文档
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // Swagger JSON 的 URL
	))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.HealthHandler)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit.Requests > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSec)*time.Second))
		}

		r.Get("/viewed-posts", h.ViewedPostsHandler)
		r.Get("/liked-posts", h.LikedPostsHandler)
		r.Get("/inspired-posts", h.InspiredPostsHandler)
		r.Get("/rated-posts", h.RatedPostsHandler)
		r.Get("/all-users", h.AllUsersHandler)
		r.Get("/all-posts", h.AllPostsHandler)
		r.Get("/posts/all", h.PostsAllHandler)
		r.Get("/feed", h.FeedHandler)

		r.Post("/api/model/train", h.TrainModelHandler)
		r.Post("/api/model/reload", h.ReloadModelHandler)
		r.Get("/api/model/status", h.ModelStatusHandler)
	})
}
