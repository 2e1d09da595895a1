package handlers

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsidehq/curbside-golang/internal/models"
	"github.com/curbsidehq/curbside-golang/internal/notify"
	"github.com/curbsidehq/curbside-golang/internal/tracking"
)

func expectCafeLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT id FROM cafes WHERE user_id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
}

func TestMarkOrderReadySavesStatusNote(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := &dispatchRecorder{}
	h := &Handlers{DB: db, Notifier: recorder, Trackers: tracking.NewRegistry()}

	expectCafeLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? AND cafe_id = \? FOR UPDATE`).
		WithArgs(int64(42), int64(9)).
		WillReturnRows(orderRow(models.OrderStatusPreparing, models.ApproachNone, false))

	mock.ExpectExec(`status_note = COALESCE\(\?, status_note\)`).
		WithArgs(
			models.OrderStatusReady, "captured",
			"Pull up to bay 2", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(42),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, w := newTestRequest(http.MethodPatch, "/v1/cafe/orders/42/ready", `{"note": "Pull up to bay 2"}`, 7)
	h.MarkOrderReady(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"statusNote":"Pull up to bay 2"`)

	require.Len(t, recorder.msgs, 1)
	assert.Equal(t, notify.TemplateOrderReady, recorder.msgs[0].Template)
	assert.Contains(t, recorder.msgs[0].Message, "Pull up to bay 2")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOrderReadyWithoutNoteLeavesColumnAlone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder := &dispatchRecorder{}
	h := &Handlers{DB: db, Notifier: recorder, Trackers: tracking.NewRegistry()}

	expectCafeLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? AND cafe_id = \? FOR UPDATE`).
		WithArgs(int64(42), int64(9)).
		WillReturnRows(orderRow(models.OrderStatusPreparing, models.ApproachNone, false))

	// A nil note arg plus COALESCE keeps whatever note is already stored.
	mock.ExpectExec(`status_note = COALESCE\(\?, status_note\)`).
		WithArgs(
			models.OrderStatusReady, "captured",
			nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(42),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, w := newTestRequest(http.MethodPatch, "/v1/cafe/orders/42/ready", "", 7)
	h.MarkOrderReady(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "statusNote")
	assert.NoError(t, mock.ExpectationsWereMet())
}
