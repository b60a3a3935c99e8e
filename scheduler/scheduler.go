package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flic_feed/affinity"
	"flic_feed/config"
	"flic_feed/logger"
	"flic_feed/models"
)

// 将秒数转换为时间间隔
func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// 验证小时和分钟是否有效
func validateHourMinute(hour, minute int) (int, int) {
	if hour < 0 || hour > 23 {
		logger.Warn("无效的小时值", "hour", hour, "default", 3)
		hour = 3
	}
	if minute < 0 || minute > 59 {
		logger.Warn("无效的分钟值", "minute", minute, "default", 0)
		minute = 0
	}
	return hour, minute
}

// 计算下一个指定时间点
func getNextTimePoint(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// 任务类型
type TaskType int

const (
	TaskRetrain TaskType = iota
)

// 任务状态
type TaskStatus struct {
	LastRun     time.Time
	NextRun     time.Time
	IsRunning   bool
	Description string
}

// Trainer 由 affinity.Store 实现
type Trainer interface {
	Train(ctx context.Context, src affinity.TrainingSource) (*affinity.Model, error)
}

// SnapshotPruner 重训后清理旧快照，由 repository.SnapshotRepo 实现
type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, keep int) (int64, error)
}

// 任务调度器
type Scheduler struct {
	cfg     *config.Config
	trainer Trainer
	source  affinity.TrainingSource
	pruner  SnapshotPruner
	tasks   map[TaskType]*TaskStatus
	mutex   sync.Mutex
	wg      sync.WaitGroup
}

// 创建新的调度器，pruner 可以为 nil
func NewScheduler(cfg *config.Config, trainer Trainer, source affinity.TrainingSource, pruner SnapshotPruner) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		trainer: trainer,
		source:  source,
		pruner:  pruner,
		tasks:   make(map[TaskType]*TaskStatus),
	}
}

// Start 启动调度器，ctx 取消后主循环退出。未启用重训时不做任何事。
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Scheduler.RetrainEnabled {
		logger.Info("模型定时重训未启用")
		return
	}

	// 初始化任务
	s.initTasks(time.Now())

	// 启动主循环
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	logger.Info("调度器已启动", "check_interval_sec", s.checkInterval())
}

// Wait 等待主循环和正在执行的任务结束
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) checkInterval() int {
	checkInterval := s.cfg.Scheduler.CheckIntervalSec
	if checkInterval <= 0 {
		checkInterval = 60 // 默认值
	}
	return checkInterval
}

func (s *Scheduler) debugInterval() time.Duration {
	freqSeconds := s.cfg.Debug.RetrainFreqSec
	if freqSeconds <= 0 {
		freqSeconds = 1800
	}
	return secondsToDuration(freqSeconds)
}

// 初始化任务
func (s *Scheduler) initTasks(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// 根据debug模式决定运行频率
	if s.cfg.Debug.Enabled {
		interval := s.debugInterval()
		s.tasks[TaskRetrain] = &TaskStatus{
			LastRun:     now.Add(-interval),
			NextRun:     now.Add(interval),
			Description: fmt.Sprintf("模型重训 (Debug模式: 每%d秒)", int(interval.Seconds())),
		}
		logger.Info("Debug模式已启用", "frequency_seconds", int(interval.Seconds()), "source", s.source.Name())
	} else {
		// 正常模式：每天在指定时间点重训
		hour, minute := validateHourMinute(s.cfg.Scheduler.RetrainHour, s.cfg.Scheduler.RetrainMinute)
		next := getNextTimePoint(now, hour, minute)
		s.tasks[TaskRetrain] = &TaskStatus{
			LastRun:     next.Add(-24 * time.Hour),
			NextRun:     next,
			Description: fmt.Sprintf("模型重训 (%02d:%02d)", hour, minute),
		}
		logger.Info("正常模式", "schedule_time", fmt.Sprintf("%02d:%02d", hour, minute), "source", s.source.Name())
	}

	logger.Info("定时任务初始化完成", "task_count", len(s.tasks))
}

// 主循环
func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(secondsToDuration(s.checkInterval()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("调度器已停止")
			return
		case now := <-ticker.C:
			s.checkTasks(ctx, now)
		}
	}
}

// 检查任务
func (s *Scheduler) checkTasks(ctx context.Context, now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for taskType, status := range s.tasks {
		// 如果任务正在运行，跳过
		if status.IsRunning {
			continue
		}

		// 如果任务的NextRun为零值，跳过（表示不需要定期调度）
		if status.NextRun.IsZero() {
			continue
		}

		// 如果到达或超过下次运行时间，执行任务
		if !now.Before(status.NextRun) {
			status.IsRunning = true
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runTask(ctx, taskType, now)
			}()
		}
	}
}

// Status 任务状态副本
func (s *Scheduler) Status(taskType TaskType) (TaskStatus, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	status, ok := s.tasks[taskType]
	if !ok {
		return TaskStatus{}, false
	}
	return *status, true
}

// 运行任务
func (s *Scheduler) runTask(ctx context.Context, taskType TaskType, now time.Time) {
	defer func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		status := s.tasks[taskType]
		status.IsRunning = false
		status.LastRun = now

		// 更新下次运行时间
		if s.cfg.Debug.Enabled {
			status.NextRun = now.Add(s.debugInterval())
		} else {
			hour, minute := validateHourMinute(s.cfg.Scheduler.RetrainHour, s.cfg.Scheduler.RetrainMinute)
			status.NextRun = getNextTimePoint(now.Add(time.Minute), hour, minute)
		}

		logger.Info("任务执行完成", "task", status.Description, "next_run", status.NextRun.Format("2006-01-02 15:04:05"))
	}()

	switch taskType {
	case TaskRetrain:
		s.retrain(ctx)
	}
}

func (s *Scheduler) retrain(ctx context.Context) {
	logger.Info("开始执行模型重训", "source", s.source.Name())

	m, err := s.trainer.Train(ctx, s.source)
	if err != nil {
		if errors.Is(err, models.ErrTrainingInProgress) {
			logger.Info("已有训练在进行，跳过本次重训")
			return
		}
		logger.Error("模型重训失败", "error", err)
		return
	}
	logger.Info("模型重训完成", "items", m.NumItems(), "final_loss", m.Report().FinalLoss)

	if s.pruner == nil {
		return
	}
	removed, err := s.pruner.PruneSnapshots(ctx, s.cfg.Scheduler.KeepSnapshots)
	if err != nil {
		logger.Warn("清理旧模型快照失败", "error", err)
		return
	}
	if removed > 0 {
		logger.Info("已清理旧模型快照", "removed", removed, "keep", s.cfg.Scheduler.KeepSnapshots)
	}
}
