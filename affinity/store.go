package affinity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"flic_feed/logger"
	"flic_feed/models"
)

// ErrNoSnapshot 没有可加载的模型快照
var ErrNoSnapshot = errors.New("no model snapshot available")

// TrainingSource 提供训练用的交互矩阵
type TrainingSource interface {
	Name() string
	Interactions(ctx context.Context) (*Interactions, error)
}

// SnapshotStore 模型快照的持久化
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, data []byte, report TrainReport) error
	LatestSnapshot(ctx context.Context) ([]byte, error)
}

// Store 进程内唯一的模型持有者。
// 模型整体原子替换，读取方永不阻塞；同一时刻只允许一次训练。
type Store struct {
	cfg       Config
	snapshots SnapshotStore

	current  atomic.Pointer[Model]
	trainMu  sync.Mutex
	training atomic.Bool
}

// NewStore 创建空的模型仓库，snapshots 可以为 nil
func NewStore(cfg Config, snapshots SnapshotStore) *Store {
	return &Store{cfg: cfg, snapshots: snapshots}
}

// Current 返回当前模型，未就绪时返回 models.ErrModelNotReady
func (s *Store) Current() (*Model, error) {
	m := s.current.Load()
	if m == nil {
		return nil, models.ErrModelNotReady
	}
	return m, nil
}

func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

func (s *Store) Training() bool {
	return s.training.Load()
}

// Set 替换当前模型
func (s *Store) Set(m *Model) {
	s.current.Store(m)
	if m != nil {
		modelReady.Set(1)
		modelItems.Set(float64(m.NumItems()))
	}
}

// Train 从 src 读取交互矩阵训练新模型并替换当前模型。
// 已有训练在进行时立即返回 models.ErrTrainingInProgress。训练成功后尽力保存快照。
func (s *Store) Train(ctx context.Context, src TrainingSource) (*Model, error) {
	if !s.trainMu.TryLock() {
		return nil, models.ErrTrainingInProgress
	}
	defer s.trainMu.Unlock()
	s.training.Store(true)
	defer s.training.Store(false)

	start := time.Now()
	logger.Info("Model training started", "source", src.Name())

	data, err := src.Interactions(ctx)
	if err != nil {
		trainingRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load training data from %s: %w", src.Name(), err)
	}

	m, err := Train(ctx, s.cfg, data)
	if err != nil {
		trainingRuns.WithLabelValues("error").Inc()
		logger.Error("Model training failed", "source", src.Name(), "error", err)
		return nil, err
	}
	m.report.Source = src.Name()

	s.Set(m)
	trainingRuns.WithLabelValues("success").Inc()
	trainingDuration.Observe(time.Since(start).Seconds())
	trainingLoss.Set(m.report.FinalLoss)
	logger.Info("Model training finished",
		"source", src.Name(),
		"users", m.report.Users,
		"items", m.report.Items,
		"epochs", m.report.Epochs,
		"final_loss", m.report.FinalLoss,
		"cost", time.Since(start).String())

	if s.snapshots != nil {
		if err := s.saveSnapshot(ctx, m); err != nil {
			logger.Warn("保存模型快照失败", "error", err)
		}
	}
	return m, nil
}

func (s *Store) saveSnapshot(ctx context.Context, m *Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return s.snapshots.SaveSnapshot(ctx, data, m.report)
}

// Reload 从快照存储加载最新模型
func (s *Store) Reload(ctx context.Context) (*Model, error) {
	if s.snapshots == nil {
		return nil, ErrNoSnapshot
	}
	data, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	m, err := UnmarshalModel(data)
	if err != nil {
		return nil, err
	}
	s.Set(m)
	logger.Info("Model reloaded from snapshot", "items", m.NumItems(), "trained_at", m.report.TrainedAt)
	return m, nil
}

// Status 当前模型状态
func (s *Store) Status() models.ModelStatus {
	status := models.ModelStatus{Training: s.Training()}
	m := s.current.Load()
	if m == nil {
		return status
	}
	r := m.Report()
	status.Ready = true
	status.Items = m.NumItems()
	status.Users = r.Users
	status.Epochs = r.Epochs
	status.FinalLoss = r.FinalLoss
	status.Source = r.Source
	status.TrainedAt = r.TrainedAt
	return status
}
