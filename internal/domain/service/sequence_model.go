package service

import (
	"context"

	"PriceCast/internal/domain/models"
)

// ModelSpec describes the recurrent regression network to train.
type ModelSpec struct {
	LookBack        int
	Units           [2]int
	DenseUnits      int
	Dropout         float64
	Epochs          int
	BatchSize       int
	Patience        int
	LearningRate    float64
	ValidationSplit float64
	Seed            int64
}

// TrainResult reports the fitted model and its loss history.
type TrainResult struct {
	Model       SequenceModel
	Epochs      int
	BestValLoss float64
	FinalLoss   float64
}

// SequenceModel is an opaque trained handle that predicts the next normalized value of a window.
type SequenceModel interface {
	Predict(ctx context.Context, window []float64) (float64, error)
}

// SequenceModelRuntime is the capability that trains sequence models.
// Implementations are selected at startup; an absent runtime reports Available() == false.
type SequenceModelRuntime interface {
	Name() string
	Available() bool
	Train(ctx context.Context, x [][]float64, y []float64, spec ModelSpec) (*TrainResult, error)
}

// NeuralForecaster produces the sequence-model section of a report.
// Every failure wraps models.ErrModelUnavailable.
type NeuralForecaster interface {
	Predict(ctx context.Context, series *models.PriceSeries) (*models.NeuralSummary, error)
}
