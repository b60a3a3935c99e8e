package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"

	"flic_feed/affinity"
	"flic_feed/config"
	"flic_feed/models"
)

// SyntheticSource 随机二值交互矩阵，用于没有真实数据时自举模型。物品 id 为 "1".."N"。
type SyntheticSource struct {
	Users int
	Items int
	Seed  uint64
}

func (s SyntheticSource) Name() string {
	return "synthetic"
}

func (s SyntheticSource) Interactions(ctx context.Context) (*affinity.Interactions, error) {
	if s.Users <= 0 || s.Items <= 0 {
		return nil, errors.New("synthetic source needs positive users and items")
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed+1))

	in := &affinity.Interactions{
		UserIDs: make([]string, s.Users),
		ItemIDs: make([]string, s.Items),
		Matrix:  make([][]float64, s.Users),
	}
	for i := range in.ItemIDs {
		in.ItemIDs[i] = strconv.Itoa(i + 1)
	}
	for u := range in.Matrix {
		in.UserIDs[u] = "synthetic-" + strconv.Itoa(u+1)
		row := make([]float64, s.Items)
		for i := range row {
			row[i] = float64(rng.IntN(2))
		}
		in.Matrix[u] = row
	}
	return in, nil
}

// InteractionRepository 历史互动记录的读取接口，由 repository.InteractionRepo 实现
type InteractionRepository interface {
	ListInteractions(ctx context.Context, lookbackDays int) ([]models.Interaction, error)
}

// ErrNoInteractions 没有可用于训练的互动记录
var ErrNoInteractions = errors.New("no interaction history available for training")

// InteractionSource 从互动历史构建训练矩阵
type InteractionSource struct {
	Repo         InteractionRepository
	LookbackDays int
}

func (s InteractionSource) Name() string {
	return "mysql"
}

func (s InteractionSource) Interactions(ctx context.Context) (*affinity.Interactions, error) {
	records, err := s.Repo.ListInteractions(ctx, s.LookbackDays)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoInteractions
	}
	return affinity.NewInteractions(records), nil
}

// AffinityConfigFrom 训练超参数
func AffinityConfigFrom(cfg *config.Config) affinity.Config {
	m := cfg.Model
	return affinity.Config{
		Hidden1:      m.Hidden1,
		Hidden2:      m.Hidden2,
		Epochs:       m.Epochs,
		BatchSize:    m.BatchSize,
		LearningRate: m.LearningRate,
		Corruption:   m.Corruption,
		Seed:         m.Seed,
	}
}

// NewTrainingSource 根据配置选择训练数据来源；mysql 来源要求 repo 非空
func NewTrainingSource(cfg *config.Config, repo InteractionRepository) (affinity.TrainingSource, error) {
	switch cfg.Model.TrainingSource {
	case "mysql":
		if repo == nil {
			return nil, &models.ConfigurationError{Field: "Model.TrainingSource", Reason: "mysql training source requires a database"}
		}
		return InteractionSource{Repo: repo, LookbackDays: cfg.Model.LookbackDays}, nil
	default:
		return SyntheticSource{
			Users: cfg.Model.SyntheticUsers,
			Items: cfg.Model.SyntheticItems,
			Seed:  cfg.Model.Seed,
		}, nil
	}
}
