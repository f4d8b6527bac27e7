package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creasty/defaults"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"
	"PriceCast/pkg/logger"
)

// ForecastRunner is the part of ForecastUseCase the request handler needs.
type ForecastRunner interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastReport, error)
}

// KafkaRequestHandler turns forecast requests from a topic into published reports.
// Message schema: {"symbol": "AAPL", "bars": 500, "neural": true}.
type KafkaRequestHandler struct {
	topic    string
	forecast ForecastRunner
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewKafkaRequestHandler(topic string, forecast ForecastRunner, metrics domrepo.Metrics, log *logger.Logger) *KafkaRequestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaRequestHandler{topic: topic, forecast: forecast, metrics: metrics, log: log}
}

func (h *KafkaRequestHandler) Topic() string { return h.topic }

// Handle runs one forecast. Malformed requests and instruments without enough
// history are dropped without error so the consumer does not retry them.
func (h *KafkaRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.ForecastRequest
	if err := defaults.Set(&req); err != nil {
		return fmt.Errorf("request defaults: %w", err)
	}
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("dropping malformed forecast request", logger.Error(err))
		return nil
	}
	if req.Symbol == "" {
		h.metrics.RecordError("consumer_validate")
		h.log.Warn("dropping forecast request without symbol")
		return nil
	}
	if req.Bars < 20 {
		req.Bars = 20
	}
	// a queued request always wants a fresh report
	req.Refresh = true

	report, err := h.forecast.Forecast(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			h.metrics.RecordError("consumer_insufficient_data")
			h.log.Warn("dropping forecast request",
				logger.String("symbol", req.Symbol),
				logger.Error(err),
			)
			return nil
		}
		h.metrics.RecordError("consumer_forecast")
		return err
	}
	h.log.Debug("forecast request served",
		logger.String("symbol", report.Instrument),
		logger.String("id", report.ID),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRequestHandler)(nil)
