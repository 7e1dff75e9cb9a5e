package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Manager maintains one STOMP session to the effect topics and recovers from
// transport failures.
type Manager interface {
	// Start launches the connect loop. Connection failures are never returned;
	// they are retried according to the reconnect policy.
	Start(ctx context.Context) error

	// Stop cancels the loop, closes the current session and the output channel.
	Stop(ctx context.Context) error

	// Messages returns channel of raw messages for Message Router.
	Messages() <-chan RawMessage

	// State returns the current lifecycle state.
	State() State

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State            State
	SessionID        string // Local id of the current (or last) session
	Attempts         int64  // Connection attempts since Start
	Sessions         int64  // Attempts that reached Connected
	Failures         int    // Consecutive failures since the last successful connect
	MessagesReceived int64
	LastError        string
}

// ManagerOption customizes a manager.
type ManagerOption func(*manager)

// WithClientFactory replaces the function used to create clients.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *manager) {
		m.newClient = f
	}
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	newClient ClientFactory

	// Output to Message Router
	router chan RawMessage

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once

	state    atomic.Int32
	attempts atomic.Int64
	sessions atomic.Int64
	received atomic.Int64

	mu        sync.RWMutex
	sessionID string
	failures  int
	lastErr   string
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Policy == nil {
		cfg.Policy = FixedDelay{Delay: DefaultReconnectDelay}
	}
	if len(cfg.Topics) == 0 {
		cfg.Topics = EffectTopics(DefaultTopicPrefix)
	}

	m := &manager{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		router:    make(chan RawMessage, cfg.MessageBufferSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the connect loop in the background.
func (m *manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started",
		"url", m.cfg.Client.URL,
		"topics", m.cfg.Topics,
	)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.stopOnce.Do(func() { close(m.router) })
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, leaving connect loop behind")
		return ctx.Err()
	}

	m.logger.Info("connection manager stopped")
	return nil
}

// Messages returns the output channel for Message Router.
func (m *manager) Messages() <-chan RawMessage {
	return m.router
}

// State returns the current lifecycle state.
func (m *manager) State() State {
	return State(m.state.Load())
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		State:            m.State(),
		SessionID:        m.sessionID,
		Attempts:         m.attempts.Load(),
		Sessions:         m.sessions.Load(),
		Failures:         m.failures,
		MessagesReceived: m.received.Load(),
		LastError:        m.lastErr,
	}
}

func (m *manager) setState(s State) {
	m.state.Store(int32(s))
}

// run is the Disconnected -> Connecting -> Connected loop.
func (m *manager) run() {
	defer m.wg.Done()
	defer m.setState(StateDisconnected)

	for {
		connected, err := m.session()
		if m.ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		if connected {
			m.failures = 0
		}
		m.failures++
		failures := m.failures
		if err != nil {
			m.lastErr = err.Error()
		}
		m.mu.Unlock()

		m.setState(StateDisconnected)

		wait, ok := m.cfg.Policy.Next(failures)
		if !ok {
			m.logger.Error("giving up reconnecting",
				"failures", failures,
				"error", err,
			)
			return
		}

		m.logger.Warn("connection lost, retrying",
			"connected", connected,
			"failures", failures,
			"retry_in", wait,
			"error", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session performs one connection attempt and, if it succeeds, pumps messages
// until the connection fails. connected reports whether Connected was reached.
func (m *manager) session() (connected bool, err error) {
	m.attempts.Add(1)
	m.setState(StateConnecting)

	sessionID := uuid.NewString()
	logger := m.logger.With("session_id", sessionID)

	m.mu.Lock()
	m.sessionID = sessionID
	m.mu.Unlock()

	c := m.newClient(m.cfg.Client, logger)
	defer c.Close()

	logger.Info("attempting connection", "url", m.cfg.Client.URL)

	if err := c.Connect(m.ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}

	// Entry action: subscribe to every topic.
	for _, topic := range m.cfg.Topics {
		if _, err := c.Subscribe(topic); err != nil {
			return false, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	m.sessions.Add(1)
	m.setState(StateConnected)
	logger.Info("connected",
		"server_session", c.ServerSession(),
		"topics", len(m.cfg.Topics),
	)

	return true, m.pump(c, sessionID)
}

// pump forwards MESSAGE frames until the client reports an error.
func (m *manager) pump(c Client, sessionID string) error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()

		case err := <-c.Errors():
			if err == nil {
				err = ErrNotConnected
			}
			return err

		case tf, ok := <-c.Messages():
			if !ok {
				return errors.New("message channel closed")
			}

			raw := RawMessage{
				Topic:      tf.Frame.Get(HeaderDestination),
				Body:       tf.Frame.Body,
				SessionID:  sessionID,
				MessageID:  tf.Frame.Get(HeaderMessageID),
				ReceivedAt: tf.ReceivedAt,
			}

			// Never dropped: every event must reach the store, in order.
			select {
			case m.router <- raw:
				m.received.Add(1)
			case <-m.ctx.Done():
				return m.ctx.Err()
			}
		}
	}
}
