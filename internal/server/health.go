package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/quartz"
)

// HealthPollInterval is how often WaitForHealthy retries.
const HealthPollInterval = 100 * time.Millisecond

// WaitForHealthy polls baseURL's /health endpoint until it answers 200 OK or
// ctx ends. Bots started alongside the server use it to avoid racing the
// listener.
func WaitForHealthy(ctx context.Context, clock quartz.Clock, baseURL string) error {
	healthURL := strings.TrimSuffix(baseURL, "/") + "/health"
	client := &http.Client{Timeout: time.Second}

	ticker := clock.NewTicker(HealthPollInterval, "health")
	defer ticker.Stop()

	for {
		if healthy(ctx, client, healthURL) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func healthy(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
