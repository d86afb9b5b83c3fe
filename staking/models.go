package staking

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/types"
)

// Position is one stake. Positions of an account form an append-only array
// addressed by Index; a fully withdrawn position keeps its slot with a zero
// principal and a zero Owner.
type Position struct {
	types.Entity
	ID         id.PositionID  `json:"id"`
	Account    common.Address `json:"account"`
	Owner      common.Address `json:"owner"`
	Index      uint64         `json:"index"`
	Principal  types.Amount   `json:"principal"`
	Tier       int64          `json:"tier"`
	Start      int64          `json:"start"`
	Withdrawn  types.Amount   `json:"withdrawn"`
	RewardPaid types.Amount   `json:"reward_paid"`
}

// Tombstoned reports whether the position has been fully withdrawn.
func (p *Position) Tombstoned() bool {
	return p.Owner == (common.Address{})
}

// MaturesAt is the first instant a withdrawal is penalty free.
func (p *Position) MaturesAt() int64 { return p.Start + p.Tier }

// Tombstone clears the position in place.
func (p *Position) Tombstone() {
	p.Owner = common.Address{}
	p.Principal = types.Zero
}

// PositionSummary is a position with its reward as of the summary time.
type PositionSummary struct {
	Position
	Claimable types.Amount `json:"claimable"`
}

// Summary is the read-only view returned for an account.
type Summary struct {
	TotalAmount types.Amount      `json:"total_amount"`
	Positions   []PositionSummary `json:"positions"`
}

// Withdrawal is the breakdown of a (partial) withdrawal.
type Withdrawal struct {
	Amount  types.Amount `json:"amount"`
	Reward  types.Amount `json:"reward"`
	Penalty types.Amount `json:"penalty"`
	Payout  types.Amount `json:"payout"`
	Matured bool         `json:"matured"`
}
