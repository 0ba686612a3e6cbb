// Package conv tracks active flow runs per user and routes incoming button presses and
// text messages to the run waiting for them.
package conv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0xVanfer/tg-flow/flow"
)

var (
	// ErrActive is returned by Start when the user already has a running conversation.
	ErrActive = errors.New("conversation already active")

	// ErrAlreadyWaiting is returned when a second waiter is registered for the same user.
	ErrAlreadyWaiting = errors.New("user already has a pending waiter")
)

// Conversation is one running flow for a user.
type Conversation struct {
	UserID    int64     // User the run talks to
	FlowName  string    // Flow being run
	RunID     string    // Run id, matches flow.State.RunID
	StartedAt time.Time // When the run started
	ExpiresAt time.Time // Deadline after which cleanup cancels the run

	cancel context.CancelFunc
}

// IsExpired reports whether the conversation outlived its TTL.
func (c *Conversation) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

type kindMask uint8

const (
	acceptButton kindMask = 1 << iota
	acceptText
)

// waiter is a one-shot slot. The first matching delivery claims it.
type waiter struct {
	accept kindMask
	ch     chan flow.Input
}

func (w *waiter) accepts(kind flow.InputKind) bool {
	switch kind {
	case flow.InputButton:
		return w.accept&acceptButton != 0
	case flow.InputText:
		return w.accept&acceptText != 0
	}
	return false
}

// Manager owns conversations and pending waiters. It is safe for concurrent use.
type Manager struct {
	conversations map[int64]*Conversation
	waiters       map[int64]*waiter
	defaultTTL    time.Duration
	log           *slog.Logger
	mu            sync.Mutex
}

// NewManager creates a conversation manager.
//
// Parameters:
//   - defaultTTL: How long a conversation may live when Start gets no TTL (default: 30 minutes)
//   - log: Logger for expiry and delivery events (slog.Default() if nil)
func NewManager(defaultTTL time.Duration, log *slog.Logger) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		conversations: make(map[int64]*Conversation),
		waiters:       make(map[int64]*waiter),
		defaultTTL:    defaultTTL,
		log:           log.With("component", "conv"),
	}
}

// Start registers a conversation for a user and returns a context that is cancelled
// when the conversation is ended or expires. A user has at most one conversation;
// starting a second one while the first is active fails with ErrActive.
//
// Parameters:
//   - ctx: Parent context of the run
//   - userID: Telegram user ID
//   - flowName: Name of the flow being run
//   - runID: Unique ID of this run
//   - ttl: Lifetime of the conversation (defaultTTL if <= 0)
func (m *Manager) Start(ctx context.Context, userID int64, flowName, runID string, ttl time.Duration) (context.Context, *Conversation, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.conversations[userID]; ok && !existing.IsExpired() {
		return nil, nil, fmt.Errorf("%w: %s", ErrActive, existing.FlowName)
	}

	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	c := &Conversation{
		UserID:    userID,
		FlowName:  flowName,
		RunID:     runID,
		StartedAt: now,
		ExpiresAt: now.Add(ttl),
		cancel:    cancel,
	}
	m.conversations[userID] = c
	return runCtx, c, nil
}

// Get returns the user's active conversation, or nil.
// Thread-safe for concurrent access.
func (m *Manager) Get(userID int64) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[userID]
}

// End removes the user's conversation and cancels its context.
// A run blocked in one of the Await methods returns with the context error.
// Ending a user without a conversation is a no-op.
func (m *Manager) End(userID int64) {
	m.mu.Lock()
	c, ok := m.conversations[userID]
	if ok {
		delete(m.conversations, userID)
	}
	m.mu.Unlock()

	if ok {
		c.cancel()
	}
}

// Count returns the number of active conversations.
// Thread-safe for concurrent access.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

// Cleanup ends all expired conversations and returns how many were ended.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	var expired []*Conversation
	for id, c := range m.conversations {
		if c.IsExpired() {
			expired = append(expired, c)
			delete(m.conversations, id)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		m.log.Info("conversation expired", "user_id", c.UserID, "flow", c.FlowName, "run_id", c.RunID)
		c.cancel()
	}
	return len(expired)
}

// StartCleanupTask periodically ends expired conversations until ctx is cancelled.
func (m *Manager) StartCleanupTask(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// Waiting reports whether a run is currently waiting for input from the user.
// Thread-safe for concurrent access.
func (m *Manager) Waiting(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiters[userID]
	return ok
}

// AwaitButton waits for the user's next button press.
// It returns flow.ErrTimeout when nothing arrives within timeout, and the context
// error when ctx is cancelled first.
func (m *Manager) AwaitButton(ctx context.Context, userID int64, timeout time.Duration) (flow.ButtonPress, error) {
	in, err := m.await(ctx, userID, acceptButton, timeout)
	return in.Button, err
}

// AwaitText waits for the user's next text message.
func (m *Manager) AwaitText(ctx context.Context, userID int64, timeout time.Duration) (flow.TextReply, error) {
	in, err := m.await(ctx, userID, acceptText, timeout)
	return in.Text, err
}

// AwaitEither waits for a button press or a text message, whichever comes first.
// Both kinds are registered in one slot, so exactly one delivery is consumed and the
// other is reported as unhandled to its caller.
func (m *Manager) AwaitEither(ctx context.Context, userID int64, timeout time.Duration) (flow.Input, error) {
	return m.await(ctx, userID, acceptButton|acceptText, timeout)
}

func (m *Manager) await(ctx context.Context, userID int64, accept kindMask, timeout time.Duration) (flow.Input, error) {
	w := &waiter{accept: accept, ch: make(chan flow.Input, 1)}

	m.mu.Lock()
	if _, busy := m.waiters[userID]; busy {
		m.mu.Unlock()
		return flow.Input{}, ErrAlreadyWaiting
	}
	m.waiters[userID] = w
	m.mu.Unlock()

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	var err error
	select {
	case in := <-w.ch:
		return in, nil
	case <-expire:
		err = fmt.Errorf("%w after %s", flow.ErrTimeout, timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.mu.Lock()
	if m.waiters[userID] == w {
		delete(m.waiters, userID)
		m.mu.Unlock()
		return flow.Input{}, err
	}
	m.mu.Unlock()

	// A delivery claimed the slot between expiry and unregistering.
	return <-w.ch, nil
}

// DeliverButton hands a button press to the user's waiter.
// It returns false when nobody is waiting for a press.
func (m *Manager) DeliverButton(userID int64, press flow.ButtonPress) bool {
	return m.deliver(userID, flow.Input{Kind: flow.InputButton, Button: press})
}

// DeliverText hands a text message to the user's waiter.
// It returns false when nobody is waiting for text.
func (m *Manager) DeliverText(userID int64, reply flow.TextReply) bool {
	return m.deliver(userID, flow.Input{Kind: flow.InputText, Text: reply})
}

func (m *Manager) deliver(userID int64, in flow.Input) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.waiters[userID]
	if !ok || !w.accepts(in.Kind) {
		return false
	}
	delete(m.waiters, userID)
	w.ch <- in

	if c, ok := m.conversations[userID]; ok {
		c.ExpiresAt = time.Now().Add(m.defaultTTL)
	}
	return true
}
