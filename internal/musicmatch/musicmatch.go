// Package musicmatch is the optional background-music matcher client.
// The matcher itself is opaque: it either names a track or it doesn't.
package musicmatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

type match struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type Client struct {
	host string
}

// New reads MUSIC_MATCHER_URL; an empty value disables matching.
func New() *Client {
	return &Client{host: os.Getenv("MUSIC_MATCHER_URL")}
}

func (c *Client) Enabled() bool { return c.host != "" }

// Identify returns the matched track, or ok=false when the matcher
// finds nothing. Errors are reported but callers treat them as "no
// match" since the signal is optional.
func (c *Client) Identify(ctx context.Context, audioURL string) (title, artist string, ok bool, err error) {
	if !c.Enabled() {
		return "", "", false, nil
	}
	endpoint := strings.TrimRight(c.host, "/") + "/identify?audio_url=" + url.QueryEscape(audioURL)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", "", false, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return "", "", false, nil
	}
	body, _ := io.ReadAll(resp.Body)
	var m match
	if err := json.Unmarshal(body, &m); err != nil {
		return "", "", false, err
	}
	if m.Title == "" && m.Artist == "" {
		return "", "", false, nil
	}
	return m.Title, m.Artist, true, nil
}
