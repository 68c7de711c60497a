package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/KalilovM/topshopes-backend/pkg/db/dbtest"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/outbox"
	"github.com/KalilovM/topshopes-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, logger.New(logger.Options{ServiceName: "test"}))
	ctx := context.Background()
	orderID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, Quantity: 2, TotalPriceCents: 1800},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, client.DB().Where("aggregate_id = ?", orderID).First(&row).Error)
	require.Equal(t, enums.EventOrderCreated, row.EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.Equal(t, row.ID.String(), envelope.EventID)

	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, int64(1800), data.TotalPriceCents)
}

func TestEmitIsRolledBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()
	orderID := uuid.New()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCanceledEvent{OrderID: orderID},
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	count, err := repo.CountByType(ctx, enums.EventOrderCanceled, orderID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestEmitRequiresTransactionAndAggregate(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, outbox.DomainEvent{}))
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Data:          payloads.OrderCreatedEvent{},
		})
	})
	require.ErrorContains(t, err, "aggregate id is required")
}

func TestDecodeEnvelopeRejectsUndeliverablePayloads(t *testing.T) {
	cases := map[string]string{
		"not json":   `{`,
		"no id":      `{"version":1,"data":{}}`,
		"no version": `{"eventId":"e1","data":{}}`,
		"null data":  `{"version":1,"eventId":"e1","data":null}`,
	}
	for name, raw := range cases {
		_, err := outbox.DecodeEnvelope([]byte(raw))
		require.Error(t, err, name)
	}

	envelope, err := outbox.DecodeEnvelope([]byte(`{"version":2,"eventId":"e1","data":{"orderId":"x"}}`))
	require.NoError(t, err)
	require.Equal(t, 2, envelope.Version)
}

func TestPublishLifecycleAndRetention(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	published := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	failing := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.Insert(tx, published); err != nil {
			return err
		}
		return repo.Insert(tx, failing)
	}))

	var rows []models.OutboxEvent
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, rows[1].ID, errors.New("permanent"), 3)
	}))
	require.Len(t, rows, 2)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		pending, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.Empty(t, pending)
		return err
	}))

	kept, err := repo.Purge(ctx, nil, time.Now().Add(time.Hour), 4)
	require.NoError(t, err)
	require.Equal(t, int64(1), kept.Published)
	require.Zero(t, kept.Exhausted, "row parked below the threshold stays")

	counts, err := repo.Purge(ctx, nil, time.Now().Add(time.Hour), 3)
	require.NoError(t, err)
	require.Equal(t, int64(0), counts.Published)
	require.Equal(t, int64(1), counts.Exhausted)
	require.Equal(t, int64(1), counts.Total())
}

func TestMarkFailedIncrementsAttempts(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventPayoutRecorded, AggregateType: enums.AggregatePayout, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := repo.Insert(tx, row); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, row.ID, errors.New("unavailable")); err != nil {
			return err
		}
		return repo.MarkFailedTx(tx, row.ID, errors.New("unavailable"))
	}))

	var stored models.OutboxEvent
	require.NoError(t, client.DB().First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	require.Equal(t, "unavailable", *stored.LastError)
}

func TestDLQRepositoryTruncatesMessages(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	eventID := uuid.New()
	long := strings.Repeat("x", 4096)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.Record(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &long,
		})
	}))

	entry, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, *entry.ErrorMessage, 1024)

	require.False(t, entry.FailedAt.IsZero())

	_, err = dlq.FindByEventID(ctx, uuid.New())
	require.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)
}

func TestDLQPurgeKeepsRecentFailures(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	old := models.OutboxDLQ{EventID: uuid.New(), EventType: enums.EventPayoutRecorded, AggregateType: enums.AggregatePayout, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonMaxAttempts, FailedAt: now.Add(-60 * 24 * time.Hour)}
	recent := models.OutboxDLQ{EventID: uuid.New(), EventType: enums.EventPayoutRecorded, AggregateType: enums.AggregatePayout, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonMaxAttempts, FailedAt: now.Add(-time.Hour)}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := dlq.Record(tx, old); err != nil {
			return err
		}
		return dlq.Record(tx, recent)
	}))

	deleted, err := dlq.PurgeBefore(ctx, nil, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = dlq.FindByEventID(ctx, old.EventID)
	require.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)
	_, err = dlq.FindByEventID(ctx, recent.EventID)
	require.NoError(t, err)
}

func TestDeadLetterCopiesEventIdentity(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  4,
	}
	failedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	entry := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("topic missing"), failedAt)
	require.Equal(t, event.ID, entry.EventID)
	require.Equal(t, event.AggregateID, entry.AggregateID)
	require.Equal(t, 4, entry.AttemptCount)
	require.Equal(t, failedAt, entry.FailedAt)
	require.NotNil(t, entry.ErrorMessage)
	require.Equal(t, "topic missing", *entry.ErrorMessage)

	require.Nil(t, event.DeadLetter(enums.OutboxDLQReasonNonRetryable, nil, failedAt).ErrorMessage)
}
