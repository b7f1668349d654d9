package publish

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/model"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/nats-io/nats.go"
)

func sampleSummary() model.GroupSummary {
	return model.GroupSummary{
		RunID:       "6f1c2a9e-1111-4a4a-8b8b-000000000001",
		Period:      model.Period{Start: 12, End: 480, Label: "video call"},
		Direction:   model.Upload,
		State:       model.StateActive,
		Local:       "10.0.0.2",
		Peer:        "142.250.1.1",
		Protocol:    "UDP",
		Packets:     311,
		Throughput:  15234.5,
		MeanSize:    812.25,
		MedianSize:  1200,
		MeanDelta:   20.5,
		MedianDelta: 19.75,
		DeltaCount:  310,
		GeneratedAt: time.Date(2024, 3, 1, 12, 30, 0, 123456000, time.UTC),
	}
}

func TestEncodeDecode(t *testing.T) {
	want := sampleSummary()
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.GeneratedAt.Equal(want.GeneratedAt) {
		t.Errorf("Expected time %v, got %v", want.GeneratedAt, got.GeneratedAt)
	}
	got.GeneratedAt = want.GeneratedAt
	if got != want {
		t.Errorf("Summary changed in transit:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

type fakeConn struct {
	msgs    []*nats.Msg
	err     error
	drained bool
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisher_PublishSetsRunIDHeader(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{nc: conn, subject: "period.summaries"}

	if err := p.Publish(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(conn.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(conn.msgs))
	}
	msg := conn.msgs[0]
	if msg.Subject != "period.summaries" || msg.Header.Get(RunIDHeader) != sampleSummary().RunID {
		t.Errorf("Unexpected message: subject=%s header=%v", msg.Subject, msg.Header)
	}

	// The subscriber side decodes what the publisher sent.
	var received []model.GroupSummary
	HandleMsg(func(s model.GroupSummary) { received = append(received, s) })(msg)
	if len(received) != 1 || received[0].Peer != "142.250.1.1" {
		t.Errorf("Unexpected received summaries: %+v", received)
	}

	if err := p.Close(); err != nil || !conn.drained {
		t.Errorf("Expected the connection to be drained, err=%v", err)
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := &NATSPublisher{nc: &fakeConn{err: nats.ErrConnectionClosed}, subject: "s"}
	if err := p.Publish(context.Background(), sampleSummary()); !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("Expected ErrConnectionClosed, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, sampleSummary()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if _, err := NewNATSPublisher(config.NATSConfig{URL: "nats://127.0.0.1:4222"}); err == nil {
		t.Error("Expected an error for a missing subject")
	}
}

func TestHandleMsg_DropsUndecodable(t *testing.T) {
	called := false
	HandleMsg(func(model.GroupSummary) { called = true })(&nats.Msg{Subject: "s", Data: []byte("not a summary")})
	if called {
		t.Error("Handler must not be called for an undecodable message")
	}
}

func TestKafkaPublisher_SendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig())
	summary := sampleSummary()
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != summary.RunID {
			return fmt.Errorf("unexpected key %q", key)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		got, err := Decode(value)
		if err != nil {
			return err
		}
		if got.Packets != summary.Packets || msg.Topic != "summaries" {
			return fmt.Errorf("unexpected message %+v on %s", got, msg.Topic)
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "summaries")
	if err := p.Publish(context.Background(), summary); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, ProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "summaries")
	if err := p.Publish(context.Background(), sampleSummary()); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("Expected ErrOutOfBrokers, got %v", err)
	}
	p.Close()
}

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewKafkaPublisher(config.KafkaConfig{Topic: "t"}); err == nil {
		t.Error("Expected an error without brokers")
	}
	if _, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"127.0.0.1:9092"}}); err == nil {
		t.Error("Expected an error without a topic")
	}
}
