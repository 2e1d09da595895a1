package handlers

import (
	"net/http/httptest"
	"strings"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/curbsidehq/curbside-golang/internal/notify"
)

// dispatchRecorder captures dispatched notifications for assertions.
type dispatchRecorder struct {
	msgs []notify.Message
}

func (d *dispatchRecorder) Dispatch(msg notify.Message) {
	d.msgs = append(d.msgs, msg)
}

// newTestRequest builds a gin context for a handler call with an
// authenticated user and the order id baked into the route params.
func newTestRequest(method, target, body string, userID int64) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	c.Set("userID", userID)
	return c, w
}

// orderRowColumns matches the shared order scan column list.
var orderRowColumns = []string{
	"id", "cafe_id", "customer_id", "status", "payment_state", "payment_intent_id",
	"curbside_fee_cents", "platform_fee_cents", "total_cents",
	"gps_enabled", "customer_lat", "customer_lng", "location_updated_at",
	"distance_meters", "eta_seconds", "approach_state", "is_arriving",
	"status_note", "rejection_reason", "status_updated_at", "created_at", "updated_at",
}

// orderRow builds a full order row for sqlmock: order 42 at cafe 9 for
// customer 7, with the fields under test set by the caller.
func orderRow(status, approachState string, arriving bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderRowColumns).AddRow(
		int64(42), int64(9), int64(7), status, "captured", "pi_mock_test",
		int64(200), int64(99), int64(1500),
		true, nil, nil, nil,
		nil, nil, approachState, arriving,
		nil, nil, now, now, now,
	)
}
