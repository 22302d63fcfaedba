// Package notify dispatches push notifications after article ingestion:
// a OneSignal REST call for subscribed devices and a durable AMQP event for
// downstream consumers. Dispatch failures are logged and swallowed; they
// never affect the ingestion job or any request.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const oneSignalEndpoint = "https://onesignal.com/api/v1/notifications"

// OneSignalClient sends push notifications through the OneSignal REST API.
type OneSignalClient struct {
	appID  string
	apiKey string
	http   *http.Client
}

// NewOneSignalClient constructs a OneSignalClient.
func NewOneSignalClient(appID, apiKey string) *OneSignalClient {
	return &OneSignalClient{
		appID:  appID,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send pushes a notification to all subscribed users.
func (c *OneSignalClient) Send(ctx context.Context, title, message string, data any) error {
	payload := map[string]any{
		"app_id":                        c.appID,
		"headings":                      map[string]string{"en": title},
		"contents":                      map[string]string{"en": message},
		"included_segments":             []string{"Subscribed Users"},
		"external_id":                   uuid.NewString(),
		"channel_for_external_user_ids": "push",
	}
	if data != nil {
		payload["data"] = data
	}

	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("marshal notification: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, oneSignalEndpoint, bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("build notification request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, errDo := c.http.Do(req)
	if errDo != nil {
		return fmt.Errorf("send notification: %w", errDo)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send notification: status %d", resp.StatusCode)
	}
	return nil
}
