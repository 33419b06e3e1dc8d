package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
)

const maxFrameSize = 1 << 20

// StreamClient talks to the stylist service's NDJSON chat endpoint.
type StreamClient struct {
	baseURL string
	http    *http.Client
}

func NewStreamClient(baseURL string) *StreamClient {
	return &StreamClient{
		baseURL: baseURL,
		// No overall timeout: a stream stays open for the whole turn.
		http: &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second}},
	}
}

// Stream posts one turn and returns a channel of decoded event frames.
// The channel closes when the server ends the stream or the context is
// canceled. Undecodable lines are skipped.
func (c *StreamClient) Stream(ctx context.Context, message, userID, sessionID string) (<-chan stream.Event, error) {
	payload, err := json.Marshal(map[string]string{
		"message":   message,
		"userId":    userID,
		"sessionId": sessionID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var body struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr == nil && body.Error != "" {
			return nil, fmt.Errorf("server: %s", body.Error)
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	ch := make(chan stream.Event, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var ev stream.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
