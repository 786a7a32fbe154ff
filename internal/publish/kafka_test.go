package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type recordingWriter struct {
	calls  [][]kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	// the publisher reuses its batch slice
	w.calls = append(w.calls, append([]kafka.Message(nil), msgs...))
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func table(n int) types.Table {
	var t types.Table
	for i := 0; i < n; i++ {
		t = append(t, types.NewArticle("Yukon",
			time.Date(2021, 3, 1+i%28, 0, 0, 0, 0, time.UTC),
			fmt.Sprintf("https://yukon.ca/en/news/release-%d", i),
			"title", "body"))
	}
	return t
}

func TestPublishKeysAndValues(t *testing.T) {
	w := &recordingWriter{}
	p := NewWithWriter(w, "press-releases", testLogger)

	rows := table(2)
	if err := p.Publish(context.Background(), "yukon", rows); err != nil {
		t.Fatal(err)
	}
	if len(w.calls) != 1 || len(w.calls[0]) != 2 {
		t.Fatalf("calls = %v", w.calls)
	}

	msg := w.calls[0][0]
	if string(msg.Key) != rows[0].SourceURL {
		t.Errorf("key = %q", msg.Key)
	}
	var decoded Message
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Province != "yukon" || decoded.Article.SourceURL != rows[0].SourceURL {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "yukon" {
		t.Errorf("headers = %v", msg.Headers)
	}
}

func TestPublishBatches(t *testing.T) {
	w := &recordingWriter{}
	p := NewWithWriter(w, "t", testLogger)
	p.batchSize = 3

	if err := p.Publish(context.Background(), "yukon", table(7)); err != nil {
		t.Fatal(err)
	}
	if len(w.calls) != 3 {
		t.Fatalf("batches = %d, want 3", len(w.calls))
	}
	if n := len(w.calls[2]); n != 1 {
		t.Errorf("last batch = %d, want 1", n)
	}
	if string(w.calls[1][0].Key) != table(7)[3].SourceURL {
		t.Error("batch reuse clobbered earlier messages")
	}
}

func TestPublishEmptyAndErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := NewWithWriter(w, "t", testLogger)

	if err := p.Publish(context.Background(), "yukon", nil); err != nil {
		t.Errorf("empty publish: %v", err)
	}
	if err := p.Publish(context.Background(), "yukon", table(1)); err == nil {
		t.Error("expected write error")
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Error("close not forwarded")
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(config.KafkaConfig{Topic: "t"}, testLogger); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, testLogger); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
}
