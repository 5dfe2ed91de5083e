package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Processor struct {
	email  Sender
	sms    Sender
	logger zerolog.Logger
}

func NewProcessor(email Sender, sms Sender, logger zerolog.Logger) *Processor {
	return &Processor{
		email:  email,
		sms:    sms,
		logger: logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	payload, err := decodeMessage(msg.Values)
	if err != nil {
		// Undecodable entries can never succeed; drop them instead of
		// leaving them pending forever.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed notification")
		return nil
	}

	switch payload.Kind {
	case KindEmail:
		return p.deliver(ctx, p.email, payload)
	case KindSMS:
		return p.deliver(ctx, p.sms, payload)
	default:
		p.logger.Warn().Str("kind", string(payload.Kind)).Msg("unknown notification kind")
		return nil
	}
}

func (p *Processor) deliver(ctx context.Context, sender Sender, msg Message) error {
	if sender == nil {
		p.logger.Warn().Str("kind", string(msg.Kind)).Msg("no sender configured, skipping notification")
		return nil
	}
	if err := sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind, err)
	}
	p.logger.Info().Str("kind", string(msg.Kind)).Str("task_id", msg.TaskID).Msg("notification sent")
	return nil
}
