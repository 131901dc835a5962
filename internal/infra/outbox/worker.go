package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Producer hands finished envelopes to the broker. The Kafka producer is the
// real implementation; tests swap in a recorder.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker drains the outbox collection and publishes marketplace events
// (offer.placed, offer.accepted, listing updates) as CloudEvents. Events for
// one aggregate share a partition key, so an offer's placed/countered/accepted
// sequence is consumed in order.
type Worker struct {
	Store       *Store
	Producer    Producer
	Logger      *slog.Logger
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
}

// claimBatch caps how many events one tick publishes, so a backlog after
// downtime cannot hold the ticker loop indefinitely.
const claimBatch = 64

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// drain claims and publishes pending events until the outbox is empty or the
// batch cap is reached. Publish failures reschedule the event and move on;
// only store errors stop the worker.
func (w *Worker) drain(ctx context.Context) error {
	for i := 0; i < claimBatch; i++ {
		doc, err := w.Store.Claim(ctx, w.workerID())
		if err != nil {
			return err
		}
		if doc == nil {
			return nil
		}
		if err := w.publish(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) publish(ctx context.Context, doc *EventDocument) error {
	payload, headers, err := w.envelope(doc)
	if err != nil {
		w.warn("malformed outbox event", doc, err)
		return w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	topic := w.topicFor(doc.Name)
	if err := w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers); err != nil {
		w.warn("event publish failed", doc, err)
		return w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error())
	}
	return w.Store.MarkSent(ctx, doc.ID)
}

// envelope wraps the stored domain payload in a CloudEvents 1.0 envelope.
// A traceparent recorded at write time rides along so consumers can stitch
// the offer flow back to the originating request.
func (w *Worker) envelope(doc *EventDocument) ([]byte, map[string]string, error) {
	if doc.Headers == nil {
		doc.Headers = map[string]string{}
	}
	data := map[string]any{}
	if err := json.Unmarshal(doc.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            doc.Name + ".v1",
		"source":          w.source(),
		"subject":         doc.Aggregate,
		"time":            doc.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := doc.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range doc.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps an event name to its stream: offer.placed and the other
// negotiation events land on offer.events.v1, listing events on
// listing.events.v1.
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) warn(msg string, doc *EventDocument, err error) {
	if w.Logger == nil {
		return
	}
	w.Logger.Warn(msg, "event", doc.Name, "aggregate", doc.Aggregate, "attempts", doc.Attempts, "error", err)
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://gearyard"
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")
