package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flic_feed/affinity"
	"flic_feed/config"
	"flic_feed/models"
)

type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) Interactions(ctx context.Context) (*affinity.Interactions, error) {
	return nil, errors.New("unused")
}

type fakeTrainer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTrainer) Train(ctx context.Context, src affinity.TrainingSource) (*affinity.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	data := &affinity.Interactions{ItemIDs: []string{"1", "2"}, Matrix: [][]float64{{1, 0}, {0, 1}}}
	cfg := affinity.DefaultConfig()
	cfg.Hidden1, cfg.Hidden2, cfg.Epochs = 2, 2, 1
	return affinity.Train(ctx, cfg, data)
}

type fakePruner struct {
	mu   sync.Mutex
	keep []int
}

func (f *fakePruner) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keep = append(f.keep, keep)
	return 1, nil
}

func testConfig(debug bool) *config.Config {
	cfg := &config.Config{}
	cfg.Scheduler.RetrainEnabled = true
	cfg.Scheduler.RetrainHour = 3
	cfg.Scheduler.RetrainMinute = 30
	cfg.Scheduler.KeepSnapshots = 4
	cfg.Debug.Enabled = debug
	cfg.Debug.RetrainFreqSec = 60
	return cfg
}

func TestGetNextTimePoint(t *testing.T) {
	loc := time.UTC
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 1, 3, 30, 0, 0, loc), getNextTimePoint(now, 3, 30))

	later := time.Date(2024, 5, 1, 4, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 2, 3, 30, 0, 0, loc), getNextTimePoint(later, 3, 30))
}

func TestValidateHourMinute(t *testing.T) {
	h, m := validateHourMinute(25, -1)
	assert.Equal(t, 3, h)
	assert.Equal(t, 0, m)

	h, m = validateHourMinute(7, 45)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)
}

func TestScheduler_DailyTask(t *testing.T) {
	s := NewScheduler(testConfig(false), &fakeTrainer{}, fakeSource{}, nil)
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.Local)
	s.initTasks(now)

	status, ok := s.Status(TaskRetrain)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 3, 30, 0, 0, time.Local), status.NextRun)
	assert.Contains(t, status.Description, "03:30")
}

func TestScheduler_RunsDueTask(t *testing.T) {
	trainer := &fakeTrainer{}
	pruner := &fakePruner{}
	s := NewScheduler(testConfig(true), trainer, fakeSource{}, pruner)
	now := time.Now()
	s.initTasks(now)

	// 未到时间不执行
	s.checkTasks(context.Background(), now)
	s.Wait()
	assert.Zero(t, trainer.calls)

	due := now.Add(time.Minute)
	s.checkTasks(context.Background(), due)
	s.Wait()

	assert.Equal(t, 1, trainer.calls)
	assert.Equal(t, []int{4}, pruner.keep)

	status, _ := s.Status(TaskRetrain)
	assert.False(t, status.IsRunning)
	assert.Equal(t, due, status.LastRun)
	assert.Equal(t, due.Add(time.Minute), status.NextRun)
}

func TestScheduler_TrainingInProgressSkipsPrune(t *testing.T) {
	trainer := &fakeTrainer{err: models.ErrTrainingInProgress}
	pruner := &fakePruner{}
	s := NewScheduler(testConfig(true), trainer, fakeSource{}, pruner)
	now := time.Now()
	s.initTasks(now)

	s.checkTasks(context.Background(), now.Add(2*time.Minute))
	s.Wait()

	assert.Equal(t, 1, trainer.calls)
	assert.Empty(t, pruner.keep)
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	cfg := testConfig(true)
	cfg.Scheduler.RetrainEnabled = false
	s := NewScheduler(cfg, &fakeTrainer{}, fakeSource{}, nil)
	s.Start(context.Background())

	_, ok := s.Status(TaskRetrain)
	assert.False(t, ok)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	cfg := testConfig(true)
	cfg.Scheduler.CheckIntervalSec = 1
	s := NewScheduler(cfg, &fakeTrainer{}, fakeSource{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
