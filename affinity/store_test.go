package affinity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flic_feed/models"
)

type fakeSource struct {
	data    *Interactions
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Interactions(ctx context.Context) (*Interactions, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	return f.data, f.err
}

type memorySnapshots struct {
	data  []byte
	saved int
}

func (m *memorySnapshots) SaveSnapshot(ctx context.Context, data []byte, report TrainReport) error {
	m.data = data
	m.saved++
	return nil
}

func (m *memorySnapshots) LatestSnapshot(ctx context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return m.data, nil
}

func TestStore_NotReadyBeforeTraining(t *testing.T) {
	s := NewStore(smallConfig(), nil)

	_, err := s.Current()
	assert.True(t, errors.Is(err, models.ErrModelNotReady))
	assert.False(t, s.Ready())
	assert.False(t, s.Status().Ready)
}

func TestStore_TrainSwapsModelAndSavesSnapshot(t *testing.T) {
	snaps := &memorySnapshots{}
	s := NewStore(smallConfig(), snaps)

	m, err := s.Train(context.Background(), &fakeSource{data: blockInteractions(10, 6)})
	require.NoError(t, err)

	current, err := s.Current()
	require.NoError(t, err)
	assert.Same(t, m, current)
	assert.Equal(t, "fake", current.Report().Source)
	assert.Equal(t, 1, snaps.saved)

	status := s.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, 6, status.Items)
	assert.Equal(t, 10, status.Users)
}

func TestStore_TrainSourceError(t *testing.T) {
	s := NewStore(smallConfig(), nil)
	boom := errors.New("boom")

	_, err := s.Train(context.Background(), &fakeSource{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.False(t, s.Ready())
}

func TestStore_RejectsConcurrentTraining(t *testing.T) {
	s := NewStore(smallConfig(), nil)
	src := &fakeSource{
		data:    blockInteractions(10, 6),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Train(context.Background(), src)
		done <- err
	}()

	<-src.entered
	assert.True(t, s.Training())
	_, err := s.Train(context.Background(), &fakeSource{data: blockInteractions(10, 6)})
	assert.ErrorIs(t, err, models.ErrTrainingInProgress)

	close(src.release)
	require.NoError(t, <-done)
	assert.False(t, s.Training())
}

func TestStore_Reload(t *testing.T) {
	snaps := &memorySnapshots{}
	trained := NewStore(smallConfig(), snaps)
	m, err := trained.Train(context.Background(), &fakeSource{data: blockInteractions(10, 6)})
	require.NoError(t, err)

	fresh := NewStore(smallConfig(), snaps)
	reloaded, err := fresh.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.ItemIDs(), reloaded.ItemIDs())
	assert.True(t, fresh.Ready())
}

func TestStore_ReloadWithoutSnapshots(t *testing.T) {
	_, err := NewStore(smallConfig(), nil).Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = NewStore(smallConfig(), &memorySnapshots{}).Reload(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
