// Package transcription is the speech-to-text collaborator client: it
// publishes the audio to the recognizer service, polls until the text
// is ready, and downloads it. The whole exchange is cancellable via
// the caller's context.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sound-memos-go/internal/logger"
)

var httpClient = &http.Client{Timeout: 12 * time.Second}

const (
	pollInterval = 1500 * time.Millisecond
	pollAttempts = 40
)

type publishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaID          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type statusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		Status               string `json:"Status"` // Success, Queued, Processing, Failed
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

// Client talks to the recognizer service at a base URL.
type Client struct {
	host string
	log  *logger.Logger
}

// New reads TRANSCRIBE_URL. Supports mock mode via
// USE_MOCK_TRANSCRIBE=true.
func New() *Client {
	return &Client{
		host: os.Getenv("TRANSCRIBE_URL"),
		log:  logger.NewComponent("transcription"),
	}
}

// Transcribe resolves once to the full transcript text or an error.
// Cancelling ctx aborts the in-flight exchange; the stage is then
// treated as failed, not retried.
func (c *Client) Transcribe(ctx context.Context, audioURL, locale string) (string, error) {
	if os.Getenv("USE_MOCK_TRANSCRIBE") == "true" {
		return "내일 회의 자료는 제가 정리해서 보낼게요\n네 알겠습니다", nil
	}
	if c.host == "" {
		return "", errors.New("TRANSCRIBE_URL not set")
	}
	mediaID, existingURL, err := c.publish(ctx, audioURL, locale)
	if err != nil {
		return "", err
	}
	if existingURL != "" {
		return c.download(ctx, existingURL)
	}
	finalURL, err := c.poll(ctx, mediaID)
	if err != nil {
		return "", err
	}
	c.log.WithField("final_url", finalURL).Info("download final transcript")
	return c.download(ctx, finalURL)
}

func (c *Client) publish(ctx context.Context, audioURL, locale string) (string, string, error) {
	endpoint := strings.TrimRight(c.host, "/") + "/transcribe"
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	w.WriteField("recordingLink", audioURL)
	w.WriteField("locale", locale)
	_ = w.Close()
	req, _ := http.NewRequestWithContext(ctx, "POST", endpoint, &b)
	req.Header.Set("Content-Type", w.FormDataContentType())
	var resp publishResponse
	if err := doJSON(ctx, req, &resp); err != nil {
		return "", "", err
	}
	if resp.Code != 200 {
		return "", "", fmt.Errorf("transcribe publish error: code=%d reason=%s", resp.Code, resp.Reason)
	}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return "", resp.Data.TranscriptionURL, nil
	}
	return resp.Data.MediaID, "", nil
}

func (c *Client) poll(ctx context.Context, mediaID string) (string, error) {
	base := strings.TrimRight(c.host, "/") + "/getstatus"
	for i := 0; i < pollAttempts; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
		u, _ := url.Parse(base)
		q := u.Query()
		q.Set("mediaId", mediaID)
		u.RawQuery = q.Encode()
		req, _ := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
		var s statusResponse
		if err := doJSON(ctx, req, &s); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptionTextURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", s.Reason)
		}
	}
	return "", fmt.Errorf("transcription timeout")
}

func (c *Client) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download failed: %s", string(b))
	}
	return string(b), nil
}

func doJSON(ctx context.Context, req *http.Request, target any) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 12 * time.Second
	bo := backoff.WithContext(eb, ctx)
	var lastErr error
	op := func() error {
		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("client error: %s", string(body))
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return lastErr
	}
	return nil
}
