package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
)

type recordingWriter struct {
	messages []kafkago.Message
	fail     bool
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.fail {
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer    *recordingWriter
		publisher *kafka.Publisher
	)

	BeforeEach(func() {
		writer = &recordingWriter{}
		publisher = kafka.NewPublisherWithWriter(writer)
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "turns"})
		Expect(err).To(MatchError(kafka.ErrNoBrokers))
	})

	It("requires a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		err := publisher.PublishTurn(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("writes the event keyed by conversation id", func() {
		event := &eventstream.TurnPersistedEvent{
			EventType:    eventstream.EventTypeTurnPersisted,
			Conversation: eventstream.ConversationMeta{ConversationID: 42},
			Replies:      []string{"hi"},
		}

		Expect(publisher.PublishTurn(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("42"))
		Expect(msg.Headers).To(HaveLen(1))
		Expect(string(msg.Headers[0].Value)).To(Equal(eventstream.EventTypeTurnPersisted))

		var decoded eventstream.TurnPersistedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.Replies).To(Equal([]string{"hi"}))
	})

	It("wraps writer failures", func() {
		writer.fail = true
		err := publisher.PublishTurn(context.Background(), &eventstream.TurnPersistedEvent{})
		Expect(err).To(MatchError(ContainSubstring("broker unavailable")))
	})

	It("closes the writer", func() {
		Expect(publisher.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
