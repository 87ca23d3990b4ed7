package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/totegamma/healthvault/internal/domain"
	"github.com/totegamma/healthvault/internal/usecase"
)

// MultiPublisher delivers each event to every sink. Every sink is tried; the
// first error is returned.
type MultiPublisher struct {
	sinks  []usecase.EventPublisher
	logger *zap.Logger
}

func NewMultiPublisher(logger *zap.Logger, sinks ...usecase.EventPublisher) *MultiPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiPublisher{sinks: sinks, logger: logger}
}

func (p *MultiPublisher) Publish(ctx context.Context, event domain.Event) error {
	var first error
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.Warn("event sink failed", zap.String("txId", event.TxID), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// NopPublisher drops events. Used when no sink is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }
