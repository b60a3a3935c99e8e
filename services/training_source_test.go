package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flic_feed/config"
	"flic_feed/models"
)

type fakeInteractionRepo struct {
	records []models.Interaction
	err     error
	days    int
}

func (f *fakeInteractionRepo) ListInteractions(ctx context.Context, lookbackDays int) ([]models.Interaction, error) {
	f.days = lookbackDays
	return f.records, f.err
}

func TestSyntheticSource(t *testing.T) {
	src := SyntheticSource{Users: 10, Items: 20, Seed: 3}
	assert.Equal(t, "synthetic", src.Name())

	data, err := src.Interactions(context.Background())
	require.NoError(t, err)
	require.NoError(t, data.Validate())
	assert.Len(t, data.Matrix, 10)
	assert.Equal(t, "1", data.ItemIDs[0])
	assert.Equal(t, "20", data.ItemIDs[19])

	again, err := src.Interactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data.Matrix, again.Matrix)

	_, err = SyntheticSource{}.Interactions(context.Background())
	assert.Error(t, err)
}

func TestInteractionSource(t *testing.T) {
	repo := &fakeInteractionRepo{records: []models.Interaction{
		{UserID: "bob", PostID: "2"},
		{UserID: "alice", PostID: "1"},
		{UserID: "alice", PostID: "2"},
	}}
	src := InteractionSource{Repo: repo, LookbackDays: 14}
	assert.Equal(t, "mysql", src.Name())

	data, err := src.Interactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 14, repo.days)
	assert.Equal(t, []string{"alice", "bob"}, data.UserIDs)
	assert.Equal(t, []string{"1", "2"}, data.ItemIDs)
	assert.Equal(t, [][]float64{{1, 1}, {0, 1}}, data.Matrix)
}

func TestInteractionSource_Errors(t *testing.T) {
	_, err := InteractionSource{Repo: &fakeInteractionRepo{}}.Interactions(context.Background())
	assert.ErrorIs(t, err, ErrNoInteractions)

	boom := errors.New("db down")
	_, err = InteractionSource{Repo: &fakeInteractionRepo{err: boom}}.Interactions(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewTrainingSource(t *testing.T) {
	cfg := &config.Config{}
	cfg.Model.TrainingSource = "synthetic"
	cfg.Model.SyntheticUsers = 100
	cfg.Model.SyntheticItems = 500

	src, err := NewTrainingSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, SyntheticSource{Users: 100, Items: 500}, src)

	cfg.Model.TrainingSource = "mysql"
	_, err = NewTrainingSource(cfg, nil)
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	src, err = NewTrainingSource(cfg, &fakeInteractionRepo{})
	require.NoError(t, err)
	assert.Equal(t, "mysql", src.Name())
}
