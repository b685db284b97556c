package shredstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shred-sniper/internal/domain"
	"shred-sniper/internal/observability"
)

// ClientConfig configures the relay client.
type ClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// MaxConnectAttempts bounds the initial connection attempts. Once the
	// stream has been established at least once, reconnects retry forever.
	MaxConnectAttempts int
	// PingInterval is the interval for ping frames.
	PingInterval time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
	// Buffer is the capacity of the outbound transaction channel. The
	// reader blocks when it fills, so downstream pace bounds ingestion.
	Buffer int
}

// DefaultConfig returns the default relay client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:     1 * time.Second,
		MaxReconnectDelay:  30 * time.Second,
		MaxConnectAttempts: 5,
		PingInterval:       30 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		Buffer:             1024,
	}
}

// entryFrame is one relay push message: the slot plus the base64 entry
// payloads produced within it.
type entryFrame struct {
	Slot    uint64   `json:"slot"`
	Entries []string `json:"entries"`
}

// subscribeRequest establishes the entry subscription. The relay takes no
// parameters beyond the subscription itself.
type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
}

// Client maintains a persistent subscription to the shred relay and emits
// decoded transactions in delivery order.
type Client struct {
	endpoint string
	config   ClientConfig
	metrics  *observability.Metrics
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan domain.Transaction
	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient creates a relay client. No connection is made until Run.
// metrics may be nil.
func NewClient(endpoint string, config ClientConfig, metrics *observability.Metrics, logger *zap.Logger) *Client {
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Client{
		endpoint: endpoint,
		config:   config,
		metrics:  metrics,
		logger:   logger.Named("shredstream"),
		out:      make(chan domain.Transaction, config.Buffer),
		done:     make(chan struct{}),
	}
}

// Transactions returns the decoded transaction stream. The channel is
// closed when the client shuts down.
func (c *Client) Transactions() <-chan domain.Transaction {
	return c.out
}

// Run connects and pumps the stream until ctx is canceled or Close is
// called. Failure to establish the first connection within the configured
// attempt budget is returned as a fatal error; once the stream has been
// live, connection loss is retried indefinitely with backoff.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.out)
	defer c.wg.Wait()
	defer c.Close()

	if err := c.connectWithBackoff(ctx, c.config.MaxConnectAttempts); err != nil {
		return fmt.Errorf("initial relay connection: %w", err)
	}

	c.wg.Add(1)
	go c.pingLoop()

	for {
		if err := c.readStream(ctx); err != nil {
			return err
		}
		if c.closed.Load() || ctx.Err() != nil {
			return nil
		}

		// Mid-stream loss: any partially received fragment died with the
		// connection and is never emitted. Reconnect forever.
		c.logger.Warn("relay connection lost, reconnecting")
		if c.metrics != nil {
			c.metrics.FeedReconnects.Inc()
		}
		if err := c.connectWithBackoff(ctx, 0); err != nil {
			return nil // only on shutdown
		}
	}
}

// Close stops ingestion immediately.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()
	return nil
}

// connectWithBackoff dials and subscribes, backing off exponentially.
// maxAttempts 0 means unbounded.
func (c *Client) connectWithBackoff(ctx context.Context, maxAttempts int) error {
	delay := c.config.ReconnectDelay
	var lastErr error

	for attempt := 1; maxAttempts == 0 || attempt <= maxAttempts; attempt++ {
		if c.closed.Load() {
			return fmt.Errorf("client closed")
		}

		if err := c.connect(ctx); err != nil {
			lastErr = err
			c.logger.Warn("relay connect failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return fmt.Errorf("client closed")
			case <-time.After(delay):
			}

			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	req := subscribeRequest{JSONRPC: "2.0", ID: 1, Method: "subscribeEntries"}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info("relay stream established")
	return nil
}

// readStream reads frames until the connection drops or shutdown.
// A nil return means the connection was lost and a reconnect should
// follow; errors are reserved for unrecoverable conditions.
func (c *Client) readStream(ctx context.Context) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	for {
		if c.closed.Load() || ctx.Err() != nil {
			return nil
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		var frame entryFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			// Not an entry frame (subscription ack, keepalive). Skip.
			continue
		}

		for _, raw := range frame.Entries {
			if c.metrics != nil {
				c.metrics.EntriesReceived.Inc()
			}

			payload, err := base64.StdEncoding.DecodeString(raw)
			if err != nil {
				if c.metrics != nil {
					c.metrics.EntryDecodeErrors.Inc()
				}
				c.logger.Debug("undecodable entry payload",
					zap.Uint64("slot", frame.Slot), zap.Error(err))
				continue
			}

			txs, err := DecodeEntry(payload, frame.Slot)
			if err != nil {
				// Malformed fragment: skip it, keep the stream alive.
				if c.metrics != nil {
					c.metrics.EntryDecodeErrors.Inc()
				}
				c.logger.Debug("malformed entry skipped",
					zap.Uint64("slot", frame.Slot), zap.Error(err))
				continue
			}

			for _, tx := range txs {
				select {
				case c.out <- tx:
				case <-c.done:
					return nil
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}
