package downlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"irrigation-control/internal/models"
)

// Client enqueues actuation commands on the LoRaWAN network server's
// downlink queue. Delivery to the device itself is best-effort; a 2xx
// here only means the network server accepted the command.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{},
	}
}

type enqueueRequest struct {
	DevEUI  string `json:"dev_eui"`
	Channel int    `json:"channel"`
	Action  string `json:"action"`
}

// Send posts the command to the enqueue endpoint. The caller bounds the
// call with its context deadline; timeout surfaces as ctx.Err.
func (c *Client) Send(ctx context.Context, deviceID string, channel int, action models.CommandAction) error {
	payload, err := json.Marshal(enqueueRequest{
		DevEUI:  deviceID,
		Channel: channel,
		Action:  string(action),
	})
	if err != nil {
		return fmt.Errorf("failed to encode downlink: %w", err)
	}

	url := fmt.Sprintf("%s/api/devices/%s/queue", c.baseURL, deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build downlink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("downlink request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("network server returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
