package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Event kinds that mean records changed and expiry should be re-evaluated now.
const (
	EventRecordsImported = "records_imported"
	EventRecordsUpdated  = "records_updated"
)

// WebhookHandler receives notifications from the records backend. It
// validates the X-Webhook-Token header when a secret token is configured.
type WebhookHandler struct {
	secretToken      string
	onRecordsChanged func(event string)
	logger           *logrus.Entry
}

// NewWebhookHandler creates a handler that optionally validates webhooks using
// secretToken. If secretToken is empty, token validation is skipped.
func NewWebhookHandler(secretToken string, onRecordsChanged func(event string), logger *logrus.Entry) *WebhookHandler {
	return &WebhookHandler{
		secretToken:      secretToken,
		onRecordsChanged: onRecordsChanged,
		logger:           logger.WithField("component", "webhook"),
	}
}

type webhookPayload struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}

// ServeHTTP implements http.Handler.
func (wh *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if wh.secretToken != "" {
		token := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(wh.secretToken)) != 1 {
			wh.logger.Warn("webhook received with invalid token")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	// Read body (limit to 1 MB).
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		wh.logger.WithError(err).Error("failed to read webhook body")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		wh.logger.WithError(err).Error("failed to parse webhook payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.Event == "" {
		wh.logger.Warn("webhook payload missing event")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	log := wh.logger.WithFields(logrus.Fields{
		"event": payload.Event,
		"count": payload.Count,
	})

	switch payload.Event {
	case EventRecordsImported, EventRecordsUpdated:
		log.Info("records changed, scheduling forced update")
		wh.onRecordsChanged(payload.Event)
	default:
		log.Debug("ignoring unhandled webhook event")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}
