package handler

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGate struct {
	email     string
	historyID uint64
	calls     int
	err       error
}

func (f *fakeGate) HandleNotification(email string, historyID uint64) error {
	f.calls++
	f.email = email
	f.historyID = historyID
	return f.err
}

func newPushRouter(gate *fakeGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := &Handlers{gate: gate}
	router.POST("/pubsub/push", h.HandlePush)
	return router
}

func pushBody(payload string) []byte {
	data := base64.StdEncoding.EncodeToString([]byte(payload))
	return []byte(fmt.Sprintf(`{"message": {"data": %q, "messageId": "m-1"}}`, data))
}

func TestHandlePushDispatchesNotification(t *testing.T) {
	gate := &fakeGate{}
	router := newPushRouter(gate)

	body := pushBody(`{"emailAddress": "a@example.com", "historyId": 12345}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, gate.calls)
	assert.Equal(t, "a@example.com", gate.email)
	assert.Equal(t, uint64(12345), gate.historyID)
}

func TestHandlePushStringHistoryID(t *testing.T) {
	gate := &fakeGate{}
	router := newPushRouter(gate)

	// Large ids arrive as strings; they must not lose precision.
	body := pushBody(`{"emailAddress": "a@example.com", "historyId": "18446744073709551615"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, gate.calls)
	assert.Equal(t, uint64(18446744073709551615), gate.historyID)
}

func TestHandlePushAcknowledgesMalformedEnvelope(t *testing.T) {
	gate := &fakeGate{}
	router := newPushRouter(gate)

	for name, body := range map[string][]byte{
		"notJSON":       []byte("not json"),
		"badBase64":     []byte(`{"message": {"data": "!!!not-base64!!!"}}`),
		"badPayload":    pushBody(`not a payload`),
		"missingEmail":  pushBody(`{"historyId": 5}`),
		"missingCursor": pushBody(`{"emailAddress": "a@example.com"}`),
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
	assert.Zero(t, gate.calls)
}

func TestHandlePushAcknowledgesGateError(t *testing.T) {
	gate := &fakeGate{err: fmt.Errorf("database down")}
	router := newPushRouter(gate)

	body := pushBody(`{"emailAddress": "a@example.com", "historyId": 7}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
