package airdrop

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/types"
)

// DefaultCooldown is the minimum spacing between claims of one owner.
const DefaultCooldown = 30 * clock.Day

// State is the engine-wide airdrop configuration.
type State struct {
	types.Entity
	Enabled   bool      `json:"enabled"`
	Rate      types.BPS `json:"rate_bps"`
	Cooldown  int64     `json:"cooldown"`
	StartedAt int64     `json:"started_at"`
}

// Claim records an owner's last airdrop claim.
type Claim struct {
	types.Entity
	Owner     common.Address `json:"owner"`
	LastClaim int64          `json:"last_claim"`
	Claimed   types.Amount   `json:"claimed"`
	Count     uint64         `json:"count"`
}

// CooldownEnds returns when the owner may claim again. A nil claim may
// claim immediately.
func (c *Claim) CooldownEnds(cooldown int64) int64 {
	if c == nil || c.Count == 0 {
		return 0
	}
	return c.LastClaim + cooldown
}

// Payout is rate applied to the active staked principal.
func Payout(activePrincipal types.Amount, rate types.BPS) types.Amount {
	return rate.Of(activePrincipal)
}
