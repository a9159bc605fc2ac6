package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"reviewq/pkg/bus"
)

// Subscription is a live feed of queue events. Close is safe to call
// more than once and tears the connection down deterministically; the
// Events channel closes when the feed ends for any reason.
type Subscription struct {
	Events <-chan bus.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the subscription and waits for the reader to finish.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Stream connects to the server's event stream. The subscription ends
// when ctx is cancelled, Close is called, or the server goes away; a
// caller that reconnects must re-fetch queue state, since events are
// not replayed.
func (c *Client) Stream(ctx context.Context) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/queue/stream", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("X-Reviewer", c.reviewer)
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived; bypass the client's request timeout.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("event stream returned %d", resp.StatusCode)
	}

	events := make(chan bus.Event, 64)
	sub := &Subscription{Events: events, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue // keepalives and blank separators
			}
			var e bus.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
				log.Printf("client: bad event payload: %v", err)
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}
