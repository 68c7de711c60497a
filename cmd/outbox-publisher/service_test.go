package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/config"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/metrics"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/registry"
)

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		AttemptCount:  attempts,
	}
}

func resolvedFor(topic string) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: topic, AggregateType: enums.AggregateOrder},
		Envelope:   outbox.PayloadEnvelope{Version: 1, OccurredAt: time.Now()},
		Payload:    &payloads.OrderCreatedEvent{},
	}
}

func TestRelayContinuesAfterTransientFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderEvent(t, enums.EventOrderCreated, 0),
		orderEvent(t, enums.EventOrderCreated, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	reg := prometheus.NewRegistry()
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: resolvedFor("orders")}, &fakeDLQRepo{}, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5}, metrics.NewOutboxMetrics(reg))

	processed, err := relay.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
	if got := publishCount(t, reg, metrics.OutboxRetried); got != 1 {
		t.Fatalf("expected retried=1, got %f", got)
	}
}

func TestRelaySetsMessageAttributes(t *testing.T) {
	event := orderEvent(t, enums.EventPaymentVerified, 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	relay := newTestRelay(t, &fakeRepo{events: []models.OutboxEvent{event}}, pub, &fakeRegistry{resolved: resolvedFor("orders")}, &fakeDLQRepo{}, config.OutboxConfig{}, nil)

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["event_type"] != string(enums.EventPaymentVerified) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
	if attrs["version"] != "1" {
		t.Fatalf("unexpected version %q", attrs["version"])
	}
	if !bytes.Equal(pub.sent[0].Data, event.Payload) {
		t.Fatalf("payload not forwarded verbatim")
	}
}

func TestRelayDeadLettersUnresolvableEvent(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	relay := newTestRelay(t, repo, &fakePublisher{}, &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}, dlq, config.OutboxConfig{}, nil)

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatalf("dlq entry does not match event")
	}
	if entry.ErrorReason != enums.OutboxDLQReasonNonRetryable {
		t.Fatalf("unexpected error reason: %s", entry.ErrorReason)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row marked terminal")
	}
}

func TestRelayDeadLettersAfterMaxAttempts(t *testing.T) {
	event := orderEvent(t, enums.EventPayoutRecorded, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	dlq := &fakeDLQRepo{}
	reg := prometheus.NewRegistry()
	relay := newTestRelay(t, repo, pub, &fakeRegistry{resolved: resolvedFor("payouts")}, dlq, config.OutboxConfig{BatchSize: 1, MaxAttempts: 2}, metrics.NewOutboxMetrics(reg))

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].ErrorReason != enums.OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts dlq entry, got %+v", dlq.entries)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row must not be marked for retry")
	}
	if got := publishCount(t, reg, metrics.OutboxDeadLettered); got != 1 {
		t.Fatalf("expected dead_lettered=1, got %f", got)
	}
}

func TestRelayMissingPublisherIsTerminal(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, enums.EventOrderCreated, 0)}}
	dlq := &fakeDLQRepo{}
	relay := newTestRelay(t, repo, nil, &fakeRegistry{resolved: resolvedFor("unknown")}, dlq, config.OutboxConfig{}, nil)
	relay.publishers = func(string) publisher { return nil }

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dlq entry for unconfigured topic")
	}
}

func TestRelayAppliesDefaults(t *testing.T) {
	relay := newTestRelay(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, config.OutboxConfig{}, nil)
	if relay.batchSize != defaultBatchSize || relay.maxAttempts != defaultMaxAttempts || relay.pollInterval != defaultPollInterval {
		t.Fatalf("unexpected defaults: %d %d %s", relay.batchSize, relay.maxAttempts, relay.pollInterval)
	}
	processed, err := relay.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("empty batch: processed=%v err=%v", processed, err)
	}
	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatalf("expected missing logger error")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestRelay(t *testing.T, repo outboxRepository, pub publisher, resolver registryResolver, dlq dlqRepository, cfg config.OutboxConfig, m *metrics.OutboxMetrics) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Config:           cfg,
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		Topics:           &fakeTopics{},
		Repository:       repo,
		Registry:         resolver,
		DLQRepository:    dlq,
		Metrics:          m,
		PublisherFactory: func(string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct relay: %v", err)
	}
	return relay
}

func publishCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != "topshopes_outbox_publish_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					total += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakeTopics struct{}

func (f *fakeTopics) Ping(context.Context) error { return nil }

func (f *fakeTopics) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) Record(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
