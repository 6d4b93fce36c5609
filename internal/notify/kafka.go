package notify

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/pkg/kafka"
)

// KafkaNotifier implements the engine's notification boundary by publishing
// events to the notifications topic. Delivery to users happens in the
// consumer (see Consumer / Mailer).
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(producer sarama.SyncProducer) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		topic:    kafka.NotificationsTopic,
	}
}

func (n *KafkaNotifier) publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(e.Username),
		Value: sarama.ByteEncoder(data),
	}
	_, _, err = n.producer.SendMessage(msg)
	return err
}

func (n *KafkaNotifier) ReservationConfirmed(_ context.Context, res model.Reservation) error {
	return n.publish(reservationEvent(EventReservationConfirmed, res))
}

func (n *KafkaNotifier) ReservationAssigned(_ context.Context, res model.Reservation, cp model.Copy) error {
	e := reservationEvent(EventReservationAssigned, res)
	e.CopyLocation = cp.Location
	return n.publish(e)
}

func (n *KafkaNotifier) PickupConfirmed(_ context.Context, res model.Reservation, b model.Borrowing) error {
	e := reservationEvent(EventPickupConfirmed, res)
	e.BorrowingID = b.ID
	e.DueDate = b.DueDate
	return n.publish(e)
}

func (n *KafkaNotifier) ReturnConfirmed(_ context.Context, b model.Borrowing) error {
	return n.publish(borrowingEvent(EventReturnConfirmed, b))
}

func (n *KafkaNotifier) DueSoon(_ context.Context, b model.Borrowing) error {
	return n.publish(borrowingEvent(EventDueSoon, b))
}

func (n *KafkaNotifier) Overdue(_ context.Context, b model.Borrowing) error {
	return n.publish(borrowingEvent(EventOverdue, b))
}
