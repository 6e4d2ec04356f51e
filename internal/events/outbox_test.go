package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outboxCols = []string{"id", "event_type", "payload", "created_at"}

func TestOutboxStoreRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), EventPaymentApproved, []byte(`{"transaction_id":"txn_1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := newOutboxStoreWithDB(mock)
	err = store.Record(context.Background(), EventPaymentApproved, map[string]any{
		"transaction_id": "txn_1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxStoreFetchPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(outboxCols).
			AddRow(id, EventAppointmentConfirmed, []byte(`{"appointment_id":"x"}`), now))

	store := newOutboxStoreWithDB(mock)
	entries, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, EventAppointmentConfirmed, entries[0].Type)
	assert.JSONEq(t, `{"appointment_id":"x"}`, string(entries[0].Payload))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxStoreMarkDelivered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectExec("UPDATE outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE outbox").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := newOutboxStoreWithDB(mock)

	updated, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, updated)

	// Already delivered.
	updated, err = store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, updated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingHandler struct {
	handled []string
	failOn  string
}

func (h *countingHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if entry.Type == h.failOn {
		return errors.New("downstream unavailable")
	}
	h.handled = append(h.handled, entry.Type)
	return nil
}

func TestDelivererKeepsFailedEntriesPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	okID := uuid.New()
	badID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM outbox").
		WithArgs(25).
		WillReturnRows(pgxmock.NewRows(outboxCols).
			AddRow(badID, EventAppointmentCancelled, []byte(`{}`), now).
			AddRow(okID, EventReviewReceived, []byte(`{}`), now))

	// Only the successfully handled entry is marked delivered.
	mock.ExpectExec("UPDATE outbox").
		WithArgs(okID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := &countingHandler{failOn: EventAppointmentCancelled}
	deliverer := NewDeliverer(newOutboxStoreWithDB(mock), handler, 25, time.Second)
	deliverer.DeliverOnce(context.Background())

	assert.Equal(t, []string{EventReviewReceived}, handler.handled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
