package downlink_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"irrigation-control/internal/models"
	"irrigation-control/pkg/downlink"
)

func TestSendEnqueuesCommand(t *testing.T) {
	var got struct {
		DevEUI  string `json:"dev_eui"`
		Channel int    `json:"channel"`
		Action  string `json:"action"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/devices/dev-1/queue", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := downlink.NewClient(srv.URL, "secret")
	err := c.Send(context.Background(), "dev-1", 3, models.ActionOn)
	require.NoError(t, err)
	require.Equal(t, "dev-1", got.DevEUI)
	require.Equal(t, 3, got.Channel)
	require.Equal(t, "ON", got.Action)
}

func TestSendSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := downlink.NewClient(srv.URL, "")
	err := c.Send(context.Background(), "dev-1", 1, models.ActionOff)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestSendHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c := downlink.NewClient(srv.URL, "")
	err := c.Send(ctx, "dev-1", 1, models.ActionOn)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
