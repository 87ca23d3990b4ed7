package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/totegamma/healthvault"
	"github.com/totegamma/healthvault/internal/domain"
)

const channelPrefix = "healthvault:events:"

func Channel(patient string) string {
	return channelPrefix + patient
}

// SignalService carries registry events over redis pub/sub.
type SignalService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewSignalService(redisClient *redis.Client, logger *zap.Logger) *SignalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalService{
		rdb:    redisClient,
		logger: logger,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.Event) error {

	jsonstr, err := json.Marshal(event.Message())
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, Channel(event.Patient.Hex()), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards events of the patients named by the latest value read
// from input. The returned channel is closed once ctx is done or input is
// closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string) <-chan healthvault.EventMessage {
	output := make(chan healthvault.EventMessage)

	go func() {
		defer close(output)

		pubsub := s.rdb.Subscribe(ctx)
		defer pubsub.Close()

		messages := pubsub.Channel()
		current := []string{}

		for {
			select {
			case <-ctx.Done():
				return
			case patients, ok := <-input:
				if !ok {
					return
				}
				if len(current) > 0 {
					if err := pubsub.Unsubscribe(ctx, current...); err != nil {
						s.logger.Warn("unsubscribe failed", zap.Error(err))
					}
				}
				current = current[:0]
				for _, p := range patients {
					address, err := healthvault.ParseAddress(p)
					if err != nil {
						s.logger.Debug("ignoring invalid patient address", zap.String("patient", p))
						continue
					}
					current = append(current, Channel(address.Hex()))
				}
				if len(current) > 0 {
					if err := pubsub.Subscribe(ctx, current...); err != nil {
						s.logger.Warn("subscribe failed", zap.Error(err))
					}
				}
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event healthvault.EventMessage
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.logger.Warn("malformed event on channel", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case output <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return output
}
