// Package classify is the acoustic-event classifier collaborator
// client. Classification is one blocking call per recording that runs
// to completion before the pipeline proceeds.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/types"
)

// MinConfidence is the pre-filter applied before events reach the
// aggregator.
const MinConfidence = 0.20

var httpClient = &http.Client{Timeout: 30 * time.Second}

type classifyResponse struct {
	Status string                      `json:"status"` // done or error
	Reason string                      `json:"reason,omitempty"`
	Events []types.ClassificationEvent `json:"events"`
}

type Client struct {
	host string
	log  *logger.Logger
}

// New reads CLASSIFIER_URL. Mock mode via USE_MOCK_CLASSIFIER=true.
func New() *Client {
	return &Client{
		host: os.Getenv("CLASSIFIER_URL"),
		log:  logger.NewComponent("classify"),
	}
}

// Classify returns the finite event sequence for one recording,
// already pre-filtered to confidence > MinConfidence.
func (c *Client) Classify(ctx context.Context, audioURL string) ([]types.ClassificationEvent, error) {
	if os.Getenv("USE_MOCK_CLASSIFIER") == "true" {
		return Filter(mockEvents), nil
	}
	if c.host == "" {
		return nil, errors.New("CLASSIFIER_URL not set")
	}
	endpoint := strings.TrimRight(c.host, "/") + "/classify"
	payload, _ := json.Marshal(map[string]string{"audio_url": audioURL})

	var resp classifyResponse
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 20 * time.Second
	bo := backoff.WithContext(eb, ctx)
	var lastErr error
	op := func() error {
		req, _ := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		r, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		if r.StatusCode >= 500 {
			lastErr = fmt.Errorf("classifier server error: %s", string(body))
			return lastErr
		}
		if r.StatusCode >= 400 {
			lastErr = fmt.Errorf("classifier error: %s", string(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			lastErr = fmt.Errorf("classifier decode error: %v", err)
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return nil, lastErr
	}
	if resp.Status != "done" {
		return nil, fmt.Errorf("classification failed: %s", resp.Reason)
	}
	c.log.WithField("events", len(resp.Events)).Info("classification complete")
	return Filter(resp.Events), nil
}

// Filter drops events at or below the confidence pre-filter.
func Filter(events []types.ClassificationEvent) []types.ClassificationEvent {
	out := make([]types.ClassificationEvent, 0, len(events))
	for _, ev := range events {
		if ev.Confidence > MinConfidence {
			out = append(out, ev)
		}
	}
	return out
}

var mockEvents = []types.ClassificationEvent{
	{Label: "Waves", Confidence: 0.82, StartSec: 0, EndSec: 4},
	{Label: "Waves", Confidence: 0.74, StartSec: 4, EndSec: 8},
	{Label: "Wind", Confidence: 0.45, StartSec: 2, EndSec: 6},
	{Label: "Seagull", Confidence: 0.31, StartSec: 6, EndSec: 7},
}
