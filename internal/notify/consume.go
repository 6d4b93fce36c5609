package notify

import (
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Consumer drains the notifications topic and hands each event to the
// mailer. Delivery failures are logged and the message is marked anyway:
// notifications are best-effort, never replayed against the user forever.
type Consumer struct {
	mailer *Mailer
	log    *zap.Logger
}

func NewConsumer(mailer *Mailer, log *zap.Logger) *Consumer {
	return &Consumer{
		mailer: mailer,
		log:    log.Named("consumer"),
	}
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				c.log.Warn("message channel was closed")
				return nil
			}
			var e Event
			if err := json.Unmarshal(message.Value, &e); err != nil {
				c.log.Error("unmarshal event", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			if err := c.mailer.Send(e); err != nil {
				c.log.Error("send mail",
					zap.String("type", string(e.Type)), zap.String("username", e.Username), zap.Error(err))
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
