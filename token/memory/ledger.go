// Package memory is an in-process token ledger with an optional
// fee-on-transfer, used for tests and for embedding the engine without a
// chain.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/token"
	"github.com/xraph/lockup/types"
)

// TransferHook observes a completed transfer. It runs after the ledger lock
// is released, so it may call back into whatever initiated the transfer.
type TransferHook func(ctx context.Context, from, to common.Address, net types.Amount)

// Ledger holds balances for every account.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]types.Amount
	supply   types.Amount
	fees     token.FeeApplier
	sink     common.Address
	exempt   map[common.Address]bool
	hooks    []TransferHook
	failNext error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithFees charges fees on every transfer that does not touch an exempt
// account and credits them to sink.
func WithFees(f token.FeeApplier, sink common.Address) Option {
	return func(l *Ledger) {
		l.fees = f
		l.sink = sink
	}
}

// WithExempt exempts accounts from transfer fees.
func WithExempt(addrs ...common.Address) Option {
	return func(l *Ledger) {
		for _, a := range addrs {
			l.exempt[a] = true
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances: make(map[common.Address]types.Amount),
		exempt:   make(map[common.Address]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetFees installs a fee policy after construction, for fee appliers that
// themselves need the ledger.
func (l *Ledger) SetFees(f token.FeeApplier, sink common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fees = f
	l.sink = sink
}

// OnTransfer registers a hook.
func (l *Ledger) OnTransfer(h TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// FailNextTransfer makes the next transfer return err without moving funds.
func (l *Ledger) FailNextTransfer(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Balance returns the balance of addr.
func (l *Ledger) Balance(addr common.Address) types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// TotalSupply returns minted minus burned.
func (l *Ledger) TotalSupply() types.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// Account returns a handle bound to addr.
func (l *Ledger) Account(addr common.Address) *Account {
	return &Account{ledger: l, addr: addr}
}

func (l *Ledger) mint(to common.Address, amount types.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] = l.balances[to].Add(amount)
	l.supply = l.supply.Add(amount)
}

func (l *Ledger) burn(from common.Address, amount types.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balances[from]
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, burning %s", token.ErrInsufficientBalance, from, bal, amount)
	}
	l.balances[from] = bal.Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *Ledger) transfer(ctx context.Context, from, to common.Address, amount types.Amount) (types.Amount, error) {
	l.mu.Lock()
	if err := l.failNext; err != nil {
		l.failNext = nil
		l.mu.Unlock()
		return types.Zero, err
	}
	bal := l.balances[from]
	if bal.Lt(amount) {
		l.mu.Unlock()
		return types.Zero, fmt.Errorf("%w: %s has %s, sending %s", token.ErrInsufficientBalance, from, bal, amount)
	}

	net, fee := amount, types.Zero
	if l.fees != nil && !l.exempt[from] && !l.exempt[to] {
		net, fee = l.fees.ApplyFee(amount)
	}
	l.balances[from] = bal.Sub(amount)
	l.balances[to] = l.balances[to].Add(net)
	if !fee.IsZero() {
		l.balances[l.sink] = l.balances[l.sink].Add(fee)
	}
	hooks := l.hooks
	l.mu.Unlock()

	for _, h := range hooks {
		h(ctx, from, to, net)
	}
	return net, nil
}

// Account is a token.Ledger bound to one address.
type Account struct {
	ledger *Ledger
	addr   common.Address
}

var (
	_ token.Ledger    = (*Account)(nil)
	_ token.Addressed = (*Account)(nil)
)

// Address returns the bound account.
func (a *Account) Address() common.Address { return a.addr }

// BalanceOf implements token.Ledger.
func (a *Account) BalanceOf(_ context.Context, addr common.Address) (types.Amount, error) {
	return a.ledger.Balance(addr), nil
}

// Transfer implements token.Ledger.
func (a *Account) Transfer(ctx context.Context, to common.Address, amount types.Amount) (types.Amount, error) {
	return a.ledger.transfer(ctx, a.addr, to, amount)
}

// TransferFrom implements token.Ledger. Allowances are not modelled; the
// bound account is trusted to pull from any holder that asked it to.
func (a *Account) TransferFrom(ctx context.Context, from, to common.Address, amount types.Amount) (types.Amount, error) {
	return a.ledger.transfer(ctx, from, to, amount)
}

// Mint implements token.Ledger.
func (a *Account) Mint(_ context.Context, to common.Address, amount types.Amount) error {
	a.ledger.mint(to, amount)
	return nil
}

// Burn implements token.Ledger.
func (a *Account) Burn(_ context.Context, from common.Address, amount types.Amount) error {
	return a.ledger.burn(from, amount)
}
