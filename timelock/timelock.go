// Package timelock delays administrative calls. A call is queued with an
// execution time at least Delay in the future and may run between that time
// and the end of the grace period. Targets are named handlers registered by
// whoever owns the guarded operation; payloads are RLP encoded.
package timelock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/clock"
)

// Defaults.
const (
	DefaultDelay       = 2 * clock.Day
	DefaultGracePeriod = 14 * clock.Day
)

// Errors.
var (
	ErrUnauthorized  = errors.New("timelock: unauthorized")
	ErrUnknownTarget = errors.New("timelock: unknown target")
	ErrEtaTooSoon    = errors.New("timelock: eta must satisfy delay")
	ErrAlreadyQueued = errors.New("timelock: transaction already queued")
	ErrNotQueued     = errors.New("timelock: transaction not queued")
	ErrNotReady      = errors.New("timelock: transaction has not surpassed time lock")
	ErrStale         = errors.New("timelock: transaction is stale")
)

// Handler runs a queued call. caller is the timelock's own address, which
// the guarded component must authorize.
type Handler func(ctx context.Context, caller common.Address, payload []byte) error

// Timelock queues and executes delayed calls.
type Timelock struct {
	mu       sync.Mutex
	self     common.Address
	clock    clock.Clock
	guard    access.Controller
	delay    int64
	grace    int64
	handlers map[string]Handler
	queued   map[common.Hash]bool
	logger   *slog.Logger
}

// Option configures a Timelock.
type Option func(*Timelock)

// WithDelay sets the minimum queueing delay.
func WithDelay(d int64) Option { return func(t *Timelock) { t.delay = d } }

// WithGracePeriod sets how long a ready call stays executable.
func WithGracePeriod(d int64) Option { return func(t *Timelock) { t.grace = d } }

// WithGuard restricts Queue, Execute and Cancel to callers the controller
// authorizes for access.ActionQueue.
func WithGuard(c access.Controller) Option { return func(t *Timelock) { t.guard = c } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Timelock) { t.logger = l } }

// New returns a timelock acting as self.
func New(self common.Address, c clock.Clock, opts ...Option) *Timelock {
	t := &Timelock{
		self:     self,
		clock:    c,
		delay:    DefaultDelay,
		grace:    DefaultGracePeriod,
		handlers: make(map[string]Handler),
		queued:   make(map[common.Hash]bool),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Address is the identity the timelock calls handlers with.
func (t *Timelock) Address() common.Address { return t.self }

// Register binds a target name to a handler, replacing any previous one.
func (t *Timelock) Register(target string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[target] = h
}

// Queue schedules target(payload) for eta and returns its hash.
func (t *Timelock) Queue(ctx context.Context, caller common.Address, target string, payload []byte, eta int64) (common.Hash, error) {
	if err := t.authorize(ctx, caller); err != nil {
		return common.Hash{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.handlers[target]; !ok {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	if now := t.clock.Now(); eta < now+t.delay {
		return common.Hash{}, fmt.Errorf("%w: eta %d, earliest %d", ErrEtaTooSoon, eta, now+t.delay)
	}
	h, err := TxHash(target, payload, eta)
	if err != nil {
		return common.Hash{}, err
	}
	if t.queued[h] {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrAlreadyQueued, h)
	}
	t.queued[h] = true

	t.logger.Info("timelock call queued", "target", target, "eta", eta, "hash", h.Hex())
	return h, nil
}

// Cancel drops a queued call.
func (t *Timelock) Cancel(ctx context.Context, caller common.Address, target string, payload []byte, eta int64) error {
	if err := t.authorize(ctx, caller); err != nil {
		return err
	}
	h, err := TxHash(target, payload, eta)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.queued[h] {
		return fmt.Errorf("%w: %s", ErrNotQueued, h)
	}
	delete(t.queued, h)
	t.logger.Info("timelock call cancelled", "target", target, "hash", h.Hex())
	return nil
}

// Execute runs a queued call whose eta has passed. The call is dequeued
// before the handler runs and requeued if the handler fails.
func (t *Timelock) Execute(ctx context.Context, caller common.Address, target string, payload []byte, eta int64) error {
	if err := t.authorize(ctx, caller); err != nil {
		return err
	}
	h, err := TxHash(target, payload, eta)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if !t.queued[h] {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotQueued, h)
	}
	now := t.clock.Now()
	if now < eta {
		t.mu.Unlock()
		return fmt.Errorf("%w: ready at %d", ErrNotReady, eta)
	}
	if now > eta+t.grace {
		delete(t.queued, h)
		t.mu.Unlock()
		return fmt.Errorf("%w: expired at %d", ErrStale, eta+t.grace)
	}
	handler := t.handlers[target]
	delete(t.queued, h)
	t.mu.Unlock()

	if err := handler(ctx, t.self, payload); err != nil {
		t.mu.Lock()
		t.queued[h] = true
		t.mu.Unlock()
		return fmt.Errorf("timelock: execute %s: %w", target, err)
	}
	t.logger.Info("timelock call executed", "target", target, "hash", h.Hex())
	return nil
}

// Queued reports whether the call is waiting.
func (t *Timelock) Queued(target string, payload []byte, eta int64) bool {
	h, err := TxHash(target, payload, eta)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queued[h]
}

func (t *Timelock) authorize(ctx context.Context, caller common.Address) error {
	if t.guard == nil || t.guard.IsAuthorized(ctx, caller, access.ActionQueue) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
}

// TxHash identifies a queued call: keccak256(rlp([target, payload, eta])).
func TxHash(target string, payload []byte, eta int64) (common.Hash, error) {
	if eta < 0 {
		return common.Hash{}, fmt.Errorf("timelock: negative eta %d", eta)
	}
	enc, err := rlp.EncodeToBytes([]any{target, payload, uint64(eta)})
	if err != nil {
		return common.Hash{}, fmt.Errorf("timelock: encode call: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// Encode RLP-encodes a handler payload.
func Encode(v any) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// Decode RLP-decodes a handler payload into v.
func Decode(payload []byte, v any) error {
	if err := rlp.DecodeBytes(payload, v); err != nil {
		return fmt.Errorf("timelock: decode payload: %w", err)
	}
	return nil
}
