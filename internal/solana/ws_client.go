package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SlotNotification is a slotSubscribe update.
type SlotNotification struct {
	Slot   int64
	Parent int64
	Root   int64
}

// SlotSource streams slot updates.
type SlotSource interface {
	// Slots returns a channel of slot updates. Closed when the source stops.
	Slots() <-chan SlotNotification

	// Close stops the source.
	Close() error
}

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// SlotSubscriber maintains a slotSubscribe subscription, redialing on failure.
// Only the newest slot is buffered: consumers that fall behind skip ahead.
type SlotSubscriber struct {
	endpoint string
	config   WSClientConfig
	logger   *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	out  chan SlotNotification
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSlotSubscriber dials the endpoint, subscribes to slots and starts the read loop.
func NewSlotSubscriber(ctx context.Context, endpoint string, config *WSClientConfig, logger *slog.Logger) (*SlotSubscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &SlotSubscriber{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger.With("component", "slot_subscriber"),
		out:      make(chan SlotNotification, 1),
		done:     make(chan struct{}),
	}

	if err := s.dialAndSubscribe(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	return s, nil
}

// Slots returns the notification channel.
func (s *SlotSubscriber) Slots() <-chan SlotNotification {
	return s.out
}

// Close closes the WebSocket connection and the notification channel.
func (s *SlotSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
	return nil
}

// dialAndSubscribe connects and sends slotSubscribe. The confirmation is
// consumed by the read loop.
func (s *SlotSubscriber) dialAndSubscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "slotSubscribe",
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// readLoop reads notifications, redialing with exponential backoff on error.
func (s *SlotSubscriber) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay
	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn != nil {
			conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
			_, message, err := conn.ReadMessage()
			if err == nil {
				delay = s.config.ReconnectDelay
				s.handleMessage(message)
				continue
			}
			if s.closed.Load() {
				return
			}
			s.logger.Warn("slot stream read failed", "error", err)
			conn.Close()
			s.connMu.Lock()
			s.conn = nil
			s.connMu.Unlock()
		}

		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s.dialAndSubscribe(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("slot stream reconnect failed", "error", err, "retry_in", delay)
			delay *= 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
		}
	}
}

func (s *SlotSubscriber) handleMessage(message []byte) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil {
		s.logger.Debug("slot stream: undecodable message", "error", err)
		return
	}

	if notif.Error != nil {
		s.logger.Error("slot stream: error response", "code", notif.Error.Code, "message", notif.Error.Message)
		return
	}
	if notif.Method != "slotNotification" || notif.Params == nil {
		return
	}

	v := notif.Params.Result
	s.publish(SlotNotification{Slot: v.Slot, Parent: v.Parent, Root: v.Root})
}

// publish replaces any undelivered notification with n.
func (s *SlotSubscriber) publish(n SlotNotification) {
	for {
		select {
		case s.out <- n:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *SlotSubscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Debug("slot stream ping failed", "error", err)
				}
			}
			s.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
	Error   *RPCError             `json:"error"`
}

type wsNotificationParams struct {
	Subscription int64       `json:"subscription"`
	Result       wsSlotValue `json:"result"`
}

type wsSlotValue struct {
	Slot   int64 `json:"slot"`
	Parent int64 `json:"parent"`
	Root   int64 `json:"root"`
}
