package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// pushEnvelope is the Pub/Sub push wrapper around the notification.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// pushPayload is the decoded mailbox notification. historyId arrives
// as either a JSON number or a string; it is kept raw and parsed as an
// unsigned integer to avoid float precision loss on large values.
type pushPayload struct {
	EmailAddress string          `json:"emailAddress"`
	HistoryID    json.RawMessage `json:"historyId"`
}

// HandlePush receives mailbox push notifications. Malformed envelopes
// are logged and acknowledged anyway: a notification is only a hint,
// and re-delivery of a broken one would never succeed.
func (h *Handlers) HandlePush(c *gin.Context) {
	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		logrus.Warnf("Malformed push envelope: %v", err)
		c.Status(http.StatusOK)
		return
	}

	data, err := decodePushData(envelope.Message.Data)
	if err != nil {
		logrus.Warnf("Undecodable push data: %v", err)
		c.Status(http.StatusOK)
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logrus.Warnf("Malformed push payload: %v", err)
		c.Status(http.StatusOK)
		return
	}

	historyID, err := parseHistoryID(payload.HistoryID)
	if err != nil || payload.EmailAddress == "" {
		logrus.Warnf("Incomplete push payload (email=%q): %v", payload.EmailAddress, err)
		c.Status(http.StatusOK)
		return
	}

	if err := h.gate.HandleNotification(payload.EmailAddress, historyID); err != nil {
		logrus.Errorf("Failed to handle notification for %s: %v", payload.EmailAddress, err)
	}

	c.Status(http.StatusOK)
}

func decodePushData(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

func parseHistoryID(raw json.RawMessage) (uint64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return strconv.ParseUint(s, 10, 64)
}
