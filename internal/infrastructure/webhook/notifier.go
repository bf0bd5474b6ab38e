// Package webhook delivers move events to outgoing HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// SignatureHeader carries the HMAC of the body when an endpoint has a secret.
const SignatureHeader = "X-Swimlane-Signature"

// Endpoint is one configured webhook receiver.
type Endpoint struct {
	Name       string        `yaml:"name" json:"name"`
	URL        string        `yaml:"url" json:"url"`
	Secret     string        `yaml:"secret,omitempty" json:"-"`
	Events     []string      `yaml:"events,omitempty" json:"events,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	Disabled   bool          `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

func (ep Endpoint) accepts(eventType string) bool {
	if ep.Disabled {
		return false
	}
	if len(ep.Events) == 0 {
		return true
	}
	for _, t := range ep.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      *events.BaseEvent `json:"data"`
}

// Notifier sends outgoing webhook notifications for domain events.
type Notifier struct {
	endpoints  []Endpoint
	client     *http.Client
	deadLetter *DeadLetterStore
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewNotifier creates a notifier with the given endpoints and dead letter
// store. A nil store discards undeliverable events.
func NewNotifier(endpoints []Endpoint, deadLetter *DeadLetterStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Register subscribes the notifier to the move events of d.
func (n *Notifier) Register(d *events.EventDispatcher) {
	d.RegisterHandler("webhook", func(ctx context.Context, e events.DomainEvent) error {
		if be, ok := e.(*events.BaseEvent); ok {
			n.Notify(ctx, be)
		}
		return nil
	}, events.MoveEventTypes...)
}

// Notify sends an event to all matching endpoints in the background.
func (n *Notifier) Notify(ctx context.Context, event *events.BaseEvent) {
	body, err := json.Marshal(Payload{
		EventType: event.Type,
		Timestamp: event.Timestamp,
		Data:      event,
	})
	if err != nil {
		n.logger.Warn("failed to encode webhook payload", "event_type", event.Type, "error", err)
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, ep := range n.endpoints {
		if !ep.accepts(event.Type) {
			continue
		}
		n.wg.Add(1)
		go n.deliver(ctx, ep, event.Type, body)
	}
}

// Wait blocks until every delivery started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) deliver(ctx context.Context, ep Endpoint, eventType string, body []byte) {
	defer n.wg.Done()

	attempts := ep.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	delay := ep.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, n.send(ctx, ep, body)
	})
	if err == nil {
		return
	}

	n.logger.Warn("webhook delivery failed", "webhook", ep.Name, "event_type", eventType, "error", err)
	if n.deadLetter == nil {
		return
	}
	if err := n.deadLetter.Append(DeadLetter{
		Timestamp:   time.Now().UTC(),
		WebhookName: ep.Name,
		URL:         ep.URL,
		EventType:   eventType,
		Payload:     string(body),
		Error:       err.Error(),
		Attempts:    attempts,
	}); err != nil {
		n.logger.Error("failed to record dead letter", "webhook", ep.Name, "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, ep Endpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Swimlane-Webhook/1.0")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// sign computes HMAC-SHA256 of the payload using the secret.
func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
