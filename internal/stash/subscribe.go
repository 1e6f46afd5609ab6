package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// =============================================================================
// LOG SUBSCRIPTION
// =============================================================================

// graphql-transport-ws protocol message types
const (
	gqlConnectionInit      = "connection_init"
	gqlConnectionAck       = "connection_ack"
	gqlSubscribe           = "subscribe"
	gqlNext                = "next"
	gqlError               = "error"
	gqlComplete            = "complete"
	gqlPing                = "ping"
	gqlPong                = "pong"
	gqlConnectionKeepAlive = "ka"
)

// wsMessage represents a graphql-transport-ws protocol message.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsSubscribePayload is the payload for subscribe messages.
type wsSubscribePayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

const logsSubscription = `
	subscription LoggingSubscribe {
		loggingSubscribe { time level message }
	}
`

// websocketURL converts an HTTP endpoint to its WebSocket counterpart.
func websocketURL(endpoint string) (string, error) {
	ws := strings.Replace(endpoint, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)

	u, err := url.Parse(ws)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("parse endpoint: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// SubscribeLogs streams log entries as the server emits them. onEntry is
// invoked for every entry; return an error from it to stop. SubscribeLogs
// blocks until the server completes the subscription, onEntry fails, or ctx
// is cancelled.
func (c *Client) SubscribeLogs(ctx context.Context, onEntry func(LogEntry) error) error {
	wsEndpoint, err := websocketURL(c.endpoint)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{"graphql-transport-ws"},
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set(apiKeyHeader, c.apiKey)
	}

	conn, _, err := dialer.DialContext(ctx, wsEndpoint, header)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	var initPayload json.RawMessage
	if c.apiKey != "" {
		initPayload, _ = json.Marshal(map[string]string{apiKeyHeader: c.apiKey})
	}
	if err := conn.WriteJSON(wsMessage{Type: gqlConnectionInit, Payload: initPayload}); err != nil {
		return fmt.Errorf("send connection_init: %w", err)
	}

	var ackMsg wsMessage
	if err := conn.ReadJSON(&ackMsg); err != nil {
		return fmt.Errorf("read connection_ack: %w", err)
	}
	if ackMsg.Type != gqlConnectionAck {
		return fmt.Errorf("expected connection_ack, got %s", ackMsg.Type)
	}

	subscriptionID := uuid.New().String()
	payload, _ := json.Marshal(wsSubscribePayload{
		Query:         logsSubscription,
		OperationName: "LoggingSubscribe",
	})
	if err := conn.WriteJSON(wsMessage{ID: subscriptionID, Type: gqlSubscribe, Payload: payload}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	c.logger.Debug("log subscription started", "id", subscriptionID)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		switch msg.Type {
		case gqlNext:
			var data struct {
				Data struct {
					LoggingSubscribe []LogEntry `json:"loggingSubscribe"`
				} `json:"data"`
				Errors []graphQLError `json:"errors,omitempty"`
			}
			if err := json.Unmarshal(msg.Payload, &data); err != nil {
				return fmt.Errorf("unmarshal next payload: %w", err)
			}
			if len(data.Errors) > 0 {
				return newGraphQLError("LoggingSubscribe", data.Errors)
			}
			for _, entry := range data.Data.LoggingSubscribe {
				if err := onEntry(entry); err != nil {
					return err
				}
			}

		case gqlError:
			var errs []graphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
				return fmt.Errorf("subscription error: %s", string(msg.Payload))
			}
			return newGraphQLError("LoggingSubscribe", errs)

		case gqlComplete:
			return nil

		case gqlPing:
			mu.Lock()
			err := conn.WriteJSON(wsMessage{Type: gqlPong})
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("send pong: %w", err)
			}

		case gqlConnectionKeepAlive:
			continue

		default:
			continue
		}
	}
}
