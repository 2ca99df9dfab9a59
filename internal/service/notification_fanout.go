package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/creatorhub-api/internal/dto"
	"github.com/noah-isme/creatorhub-api/internal/observability"
)

// inboxEnvelope carries a notification between replicas.
type inboxEnvelope struct {
	Origin       string                   `json:"origin"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// inboxFanout relays notifications over Redis pub/sub and NATS so streams held by
// other replicas receive them. Envelopes from this replica are ignored on receipt.
type inboxFanout struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	origin       string
	broker       *inboxBroker
	logger       zerolog.Logger
}

func newInboxFanout(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, broker *inboxBroker, logger zerolog.Logger) *inboxFanout {
	f := &inboxFanout{
		origin: uuid.NewString(),
		broker: broker,
		logger: logger,
	}
	channelBase = strings.TrimSpace(channelBase)
	if channelBase == "" {
		return f
	}
	if redisClient != nil {
		f.redis = redisClient
		f.redisChannel = channelBase + ":notifications"
	}
	if natsConn != nil {
		f.nats = natsConn
		f.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}
	return f
}

func (f *inboxFanout) enabled() bool {
	return f.redis != nil || f.nats != nil
}

func (f *inboxFanout) start(ctx context.Context) {
	if f.redis != nil {
		go f.consumeRedis(ctx)
	}
	if f.nats != nil {
		f.consumeNATS(ctx)
	}
}

func (f *inboxFanout) publish(ctx context.Context, notification dto.NotificationResponse) error {
	if !f.enabled() {
		return nil
	}

	payload, err := json.Marshal(inboxEnvelope{
		Origin:       f.origin,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if f.redis != nil {
		if err := f.redis.Publish(ctx, f.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.nats != nil {
		if err := f.nats.Publish(f.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f *inboxFanout) consumeRedis(ctx context.Context) {
	pubsub := f.redis.Subscribe(ctx, f.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Error().Err(err).Str("channel", f.redisChannel).Msg("notification redis subscription closed")
			}
			return
		}
		f.receive([]byte(msg.Payload), "redis")
	}
}

func (f *inboxFanout) consumeNATS(ctx context.Context) {
	sub, err := f.nats.Subscribe(f.natsSubject, func(msg *nats.Msg) {
		f.receive(msg.Data, "nats")
	})
	if err != nil {
		f.logger.Error().Err(err).Str("subject", f.natsSubject).Msg("failed to subscribe to notification subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to drain notification subscription")
		}
	}()
}

func (f *inboxFanout) receive(payload []byte, transport string) {
	var envelope inboxEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		f.logger.Warn().Err(err).Str("transport", transport).Msg("invalid notification envelope")
		return
	}
	if envelope.Origin == f.origin || envelope.Notification.UserID == "" {
		return
	}

	observability.NotificationsPublished().WithLabelValues(envelope.Notification.Type, transport).Inc()
	f.broker.broadcast(envelope.Notification)
}
