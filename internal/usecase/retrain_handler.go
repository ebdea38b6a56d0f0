package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"PriceCast/internal/domain/models"
	drepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

// TrainingStarter is the part of ModelRegistry the retrain handler needs.
type TrainingStarter interface {
	StartTraining(reason string, force bool) bool
}

// RetrainHandler consumes retrain commands from Kafka.
type RetrainHandler struct {
	topic    string
	registry TrainingStarter
	metrics  drepo.Metrics
	log      *applogger.Logger
}

func NewRetrainHandler(topic string, registry TrainingStarter, metrics drepo.Metrics, l *applogger.Logger) *RetrainHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &RetrainHandler{topic: topic, registry: registry, metrics: metrics, log: l}
}

func (h *RetrainHandler) Topic() string { return h.topic }

// incoming message schema: {reason, requested_by, requested_at}
func (h *RetrainHandler) Handle(_ context.Context, b []byte) error {
	var cmd models.RetrainCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode retrain command: %w", err)
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "kafka"
	}
	started := h.registry.StartTraining(reason, true)
	h.log.Info("retrain command received",
		applogger.String("reason", reason),
		applogger.String("requested_by", cmd.RequestedBy),
		applogger.Bool("started", started))
	return nil
}
