package affinity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_training_runs_total",
			Help: "Total number of affinity model training runs by outcome",
		},
		[]string{"outcome"},
	)

	trainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affinity_training_duration_seconds",
			Help:    "Duration of affinity model training in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	trainingLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinity_training_final_loss",
			Help: "Final epoch binary cross-entropy of the current model",
		},
	)

	modelReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinity_model_ready",
			Help: "1 when a trained affinity model is loaded",
		},
	)

	modelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinity_model_items",
			Help: "Number of items in the current model's item space",
		},
	)
)
