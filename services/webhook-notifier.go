package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"collabspace/events"
	"collabspace/logging"

	"github.com/sony/gobreaker"
)

type webhookPayload struct {
	Type       string      `json:"type"`
	ActorID    string      `json:"actorId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

// WebhookNotifier forwards change events to an external endpoint. Calls go
// through a circuit breaker so a dead endpoint is not hammered.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewWebhookNotifier(url string, client *http.Client, openFor time.Duration) *WebhookNotifier {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook-cb",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
	})
	return &WebhookNotifier{url: url, client: client, breaker: breaker}
}

func (n *WebhookNotifier) Register(em *events.EventManager) {
	em.SubscribeAll(func(e events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout+time.Second)
		defer cancel()
		if err := n.Deliver(ctx, e); err != nil {
			logging.Logger.Warnf("Event ID: WEBHOOK_DELIVERY_FAILED, Description: %s not delivered: %v", e.Type, err)
		}
	})
}

func (n *WebhookNotifier) State() gobreaker.State {
	return n.breaker.State()
}

func (n *WebhookNotifier) Deliver(ctx context.Context, e events.Event) error {
	body, err := json.Marshal(webhookPayload{
		Type:       e.Type.String(),
		ActorID:    e.ActorID,
		OccurredAt: e.OccurredAt,
		Data:       e.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Collabspace-Event", e.Type.String())

		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook responded with status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
