package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"codeberg.org/mutker/macstatd/internal/errors"
)

type webhookPayload struct {
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	To        string    `json:"to"`
	From      string    `json:"from"`
	FromName  string    `json:"from_name"`
	SentAt    time.Time `json:"sent_at"`
}

// WebhookSender posts notifications as JSON to an HTTP endpoint. Transient
// failures are retried with backoff; each message carries a unique ID so the
// receiver can deduplicate retried deliveries.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	return &WebhookSender{
		url:    url,
		client: retryClient.StandardClient(),
	}
}

func (w *WebhookSender) Send(subject, body, to, from, fromName string) error {
	errFactory := errors.New()

	payload, err := json.Marshal(webhookPayload{
		MessageID: uuid.NewString(),
		Subject:   subject,
		Body:      body,
		To:        to,
		From:      from,
		FromName:  fromName,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return errFactory.Wrap(ErrDeliveryFailed, err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return errFactory.Wrap(ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errFactory.WithMessage(ErrWebhookResponse, resp.Status)
	}

	return nil
}
