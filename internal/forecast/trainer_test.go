package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecastcli/internal/config"
	"forecastcli/internal/dataset"
)

func testTrainingConfig() config.TrainingConfig {
	return config.TrainingConfig{
		Epochs:       5,
		BatchSize:    32,
		LearningRate: 0.5,
	}
}

func newTestTrainer(t *testing.T, handle *ModelHandle, cfg config.TrainingConfig) *Trainer {
	t.Helper()

	tr, err := NewTrainer(handle, cfg, nil, nil)
	require.NoError(t, err)
	return tr
}

func trainingObservations(t *testing.T, rows int) *dataset.Dataset {
	t.Helper()

	return historyOf(t, rows, marchFirst, map[string]func(i int) float64{
		"flour": func(i int) float64 { return 20 + float64(i%3) },
	})
}

func TestTrainerRequiresHandle(t *testing.T) {
	_, err := NewTrainer(nil, testTrainingConfig(), nil, nil)
	assert.Error(t, err)
}

func TestUpdateNoModel(t *testing.T) {
	tr := newTestTrainer(t, NewModelHandle(nil), testTrainingConfig())

	_, err := tr.Update(context.Background(), trainingObservations(t, 14), FitOptions{})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestUpdateMissingObservations(t *testing.T) {
	tr := newTestTrainer(t, NewModelHandle(NewBaselinePredictor()), testTrainingConfig())

	_, err := tr.Update(context.Background(), nil, FitOptions{})
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestUpdateRejectsNonTrainableModel(t *testing.T) {
	tr := newTestTrainer(t, NewModelHandle(constantPredictor(1)), testTrainingConfig())

	_, err := tr.Update(context.Background(), trainingObservations(t, 14), FitOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support incremental updates")
}

func TestUpdateSwapsModel(t *testing.T) {
	original := NewBaselinePredictor()
	handle := NewModelHandle(original)
	tr := newTestTrainer(t, handle, testTrainingConfig())

	history, err := tr.Update(context.Background(), trainingObservations(t, 28), FitOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, history.JobID)
	assert.Equal(t, 5, history.Epochs)
	assert.Len(t, history.Loss, 5)
	assert.Len(t, history.ValLoss, 5)

	// The active model is the fitted clone, not an in-place edit
	swapped := handle.Active()
	require.NotNil(t, swapped)
	assert.NotSame(t, Predictor(original), swapped)
	assert.False(t, original.fitted)
	assert.True(t, swapped.(*BaselinePredictor).fitted)
}

func TestUpdateKeepsModelOnFitFailure(t *testing.T) {
	original := NewBaselinePredictor()
	handle := NewModelHandle(original)
	tr := newTestTrainer(t, handle, testTrainingConfig())

	// All-zero observations cannot produce a profile
	zeros := historyOf(t, 14, marchFirst, map[string]func(i int) float64{
		"flour": func(i int) float64 { return 0 },
	})

	_, err := tr.Update(context.Background(), zeros, FitOptions{})
	require.Error(t, err)

	assert.Same(t, Predictor(original), handle.Active())
}

func TestUpdateThrottled(t *testing.T) {
	cfg := testTrainingConfig()
	cfg.MinInterval = time.Hour
	tr := newTestTrainer(t, NewModelHandle(NewBaselinePredictor()), cfg)

	obs := trainingObservations(t, 28)

	_, err := tr.Update(context.Background(), obs, FitOptions{})
	require.NoError(t, err)

	_, err = tr.Update(context.Background(), obs, FitOptions{})
	assert.ErrorIs(t, err, ErrTrainingThrottled)
}

func TestUpdateExplicitOptions(t *testing.T) {
	tr := newTestTrainer(t, NewModelHandle(NewBaselinePredictor()), testTrainingConfig())

	history, err := tr.Update(context.Background(), trainingObservations(t, 28), FitOptions{
		Epochs:       3,
		BatchSize:    8,
		LearningRate: 0.1,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, history.Epochs)
	assert.Len(t, history.Loss, 3)
}

func TestUpdateThenPredict(t *testing.T) {
	handle := NewModelHandle(NewBaselinePredictor())
	tr := newTestTrainer(t, handle, testTrainingConfig())

	f, err := New(handle, Options{LookbackDays: 14})
	require.NoError(t, err)

	history := trainingObservations(t, 28)

	before, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 3, StartDate: marchFirst,
	})
	require.NoError(t, err)

	_, err = tr.Update(context.Background(), history, FitOptions{})
	require.NoError(t, err)

	after, err := f.Predict(context.Background(), history, &Request{
		HorizonDays: 3, StartDate: marchFirst,
	})
	require.NoError(t, err)

	// Both models produce a full result through the shared handle
	assert.Len(t, before.Days, 3)
	assert.Len(t, after.Days, 3)
}
