// Package access decides which callers may run the engine's administrative
// operations. The engine only asks; the topology (single owner, multi-owner
// consensus, a timelock acting as owner) lives here.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Action names a guarded operation.
type Action string

// Guarded actions.
const (
	ActionInitPool            Action = "init_pool"
	ActionManageBeneficiaries Action = "manage_beneficiaries"
	ActionStartAirdrop        Action = "start_airdrop"
	ActionChangeAirdropRate   Action = "change_airdrop_rate"
	ActionChangeTaxFee        Action = "change_tax_fee"
	ActionChangePenaltyRate   Action = "change_penalty_rate"
	ActionQueue               Action = "timelock_queue"
)

// ErrNotOwner is returned by ownership management calls from a non-owner.
var ErrNotOwner = errors.New("access: caller is not an owner")

// Controller is consulted before every guarded operation.
type Controller interface {
	IsAuthorized(ctx context.Context, caller common.Address, action Action) bool
}

// Func adapts a function to Controller.
type Func func(ctx context.Context, caller common.Address, action Action) bool

// IsAuthorized implements Controller.
func (f Func) IsAuthorized(ctx context.Context, caller common.Address, action Action) bool {
	return f(ctx, caller, action)
}

// DenyAll authorizes nobody.
var DenyAll = Func(func(context.Context, common.Address, Action) bool { return false })

// Owner authorizes a single address for every action.
type Owner struct {
	mu    sync.RWMutex
	owner common.Address
}

// NewOwner returns a controller owned by addr.
func NewOwner(addr common.Address) *Owner {
	return &Owner{owner: addr}
}

// Owner returns the current owner.
func (o *Owner) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

// IsAuthorized implements Controller.
func (o *Owner) IsAuthorized(_ context.Context, caller common.Address, _ Action) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return caller != (common.Address{}) && caller == o.owner
}

// TransferOwnership hands the controller to next, typically a timelock.
func (o *Owner) TransferOwnership(caller, next common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if caller != o.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	o.owner = next
	return nil
}

// Consensus requires Threshold distinct owners to confirm the same action.
// Each call by an owner counts as a confirmation; the call that reaches the
// threshold is authorized and clears the confirmations for that action.
type Consensus struct {
	mu        sync.Mutex
	owners    map[common.Address]bool
	threshold int
	confirmed map[Action]map[common.Address]bool
}

// NewConsensus builds an N-of-M controller.
func NewConsensus(threshold int, owners ...common.Address) (*Consensus, error) {
	set := make(map[common.Address]bool, len(owners))
	for _, o := range owners {
		if o == (common.Address{}) {
			return nil, errors.New("access: zero address owner")
		}
		if set[o] {
			return nil, fmt.Errorf("access: duplicate owner %s", o)
		}
		set[o] = true
	}
	if threshold < 1 || threshold > len(set) {
		return nil, fmt.Errorf("access: threshold %d out of range for %d owners", threshold, len(set))
	}
	return &Consensus{
		owners:    set,
		threshold: threshold,
		confirmed: make(map[Action]map[common.Address]bool),
	}, nil
}

// IsAuthorized implements Controller.
func (c *Consensus) IsAuthorized(_ context.Context, caller common.Address, action Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.owners[caller] {
		return false
	}
	set := c.confirmed[action]
	if set == nil {
		set = make(map[common.Address]bool)
		c.confirmed[action] = set
	}
	set[caller] = true
	if len(set) < c.threshold {
		return false
	}
	delete(c.confirmed, action)
	return true
}

// Pending returns how many confirmations an action has collected.
func (c *Consensus) Pending(action Action) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.confirmed[action])
}

// Revoke withdraws caller's confirmation of action.
func (c *Consensus) Revoke(caller common.Address, action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.confirmed[action], caller)
}
